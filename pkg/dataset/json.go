package dataset

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Byte-array fields are serialized as upper-case hex strings, matching
// the saved network-data format.

type securityPolicyJSON struct {
	RotationTime uint16 `json:"RotationTime"`
	Flags        string `json:"Flags"`
}

type channelMaskEntryJSON struct {
	Page  uint8  `json:"Page"`
	Masks string `json:"Masks"`
}

type activeJSON struct {
	ActiveTimestamp  *Timestamp             `json:"ActiveTimestamp,omitempty"`
	Channel          *Channel               `json:"Channel,omitempty"`
	ChannelMask      []channelMaskEntryJSON `json:"ChannelMask,omitempty"`
	ExtendedPanId    *string                `json:"ExtendedPanId,omitempty"`
	MeshLocalPrefix  *string                `json:"MeshLocalPrefix,omitempty"`
	NetworkMasterKey *string                `json:"NetworkMasterKey,omitempty"`
	NetworkName      *string                `json:"NetworkName,omitempty"`
	PanId            *uint16                `json:"PanId,omitempty"`
	PSKc             *string                `json:"PSKc,omitempty"`
	SecurityPolicy   *securityPolicyJSON    `json:"SecurityPolicy,omitempty"`
}

func hexString(b []byte) *string {
	s := strings.ToUpper(hex.EncodeToString(b))
	return &s
}

func hexBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", s, err)
	}
	return b, nil
}

func (d ActiveOperationalDataset) activeJSON() activeJSON {
	var out activeJSON
	if d.PresentFlags&FlagActiveTimestamp != 0 {
		ts := d.ActiveTimestamp
		out.ActiveTimestamp = &ts
	}
	if d.PresentFlags&FlagChannel != 0 {
		ch := d.Channel
		out.Channel = &ch
	}
	if d.PresentFlags&FlagChannelMask != 0 {
		for _, e := range d.ChannelMask {
			out.ChannelMask = append(out.ChannelMask, channelMaskEntryJSON{Page: e.Page, Masks: *hexString(e.Masks)})
		}
	}
	if d.PresentFlags&FlagExtendedPanId != 0 {
		out.ExtendedPanId = hexString(d.ExtendedPanId)
	}
	if d.PresentFlags&FlagMeshLocalPrefix != 0 {
		out.MeshLocalPrefix = hexString(d.MeshLocalPrefix)
	}
	if d.PresentFlags&FlagNetworkMasterKey != 0 {
		out.NetworkMasterKey = hexString(d.NetworkMasterKey)
	}
	if d.PresentFlags&FlagNetworkName != 0 {
		name := d.NetworkName
		out.NetworkName = &name
	}
	if d.PresentFlags&FlagPanId != 0 {
		pan := d.PanId
		out.PanId = &pan
	}
	if d.PresentFlags&FlagPSKc != 0 {
		out.PSKc = hexString(d.PSKc)
	}
	if d.PresentFlags&FlagSecurityPolicy != 0 {
		out.SecurityPolicy = &securityPolicyJSON{
			RotationTime: d.SecurityPolicy.RotationTime,
			Flags:        *hexString(d.SecurityPolicy.Flags),
		}
	}
	return out
}

func (d *ActiveOperationalDataset) fromActiveJSON(in activeJSON) error {
	if in.ActiveTimestamp != nil {
		d.ActiveTimestamp = *in.ActiveTimestamp
		d.PresentFlags |= FlagActiveTimestamp
	}
	if in.Channel != nil {
		d.Channel = *in.Channel
		d.PresentFlags |= FlagChannel
	}
	if in.ChannelMask != nil {
		var mask ChannelMask
		for _, e := range in.ChannelMask {
			masks, err := hexBytes(e.Masks)
			if err != nil {
				return err
			}
			mask = append(mask, ChannelMaskEntry{Page: e.Page, Masks: masks})
		}
		d.ChannelMask = mask
		d.PresentFlags |= FlagChannelMask
	}
	if in.ExtendedPanId != nil {
		b, err := hexBytes(*in.ExtendedPanId)
		if err != nil {
			return err
		}
		d.ExtendedPanId = b
		d.PresentFlags |= FlagExtendedPanId
	}
	if in.MeshLocalPrefix != nil {
		b, err := hexBytes(*in.MeshLocalPrefix)
		if err != nil {
			return err
		}
		d.MeshLocalPrefix = b
		d.PresentFlags |= FlagMeshLocalPrefix
	}
	if in.NetworkMasterKey != nil {
		b, err := hexBytes(*in.NetworkMasterKey)
		if err != nil {
			return err
		}
		d.NetworkMasterKey = b
		d.PresentFlags |= FlagNetworkMasterKey
	}
	if in.NetworkName != nil {
		d.NetworkName = *in.NetworkName
		d.PresentFlags |= FlagNetworkName
	}
	if in.PanId != nil {
		d.PanId = *in.PanId
		d.PresentFlags |= FlagPanId
	}
	if in.PSKc != nil {
		b, err := hexBytes(*in.PSKc)
		if err != nil {
			return err
		}
		d.PSKc = b
		d.PresentFlags |= FlagPSKc
	}
	if in.SecurityPolicy != nil {
		flags, err := hexBytes(in.SecurityPolicy.Flags)
		if err != nil {
			return err
		}
		d.SecurityPolicy = SecurityPolicy{RotationTime: in.SecurityPolicy.RotationTime, Flags: flags}
		d.PresentFlags |= FlagSecurityPolicy
	}
	return nil
}

// MarshalJSON emits only the present fields.
func (d ActiveOperationalDataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.activeJSON())
}

// UnmarshalJSON sets the present flag of every field the document carries.
func (d *ActiveOperationalDataset) UnmarshalJSON(data []byte) error {
	var in activeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = ActiveOperationalDataset{}
	return d.fromActiveJSON(in)
}

type pendingJSON struct {
	activeJSON
	PendingTimestamp *Timestamp `json:"PendingTimestamp,omitempty"`
	DelayTimer       *uint32    `json:"DelayTimer,omitempty"`
}

// MarshalJSON emits only the present fields.
func (d PendingOperationalDataset) MarshalJSON() ([]byte, error) {
	out := pendingJSON{activeJSON: d.ActiveOperationalDataset.activeJSON()}
	if d.PresentFlags&FlagPendingTimestamp != 0 {
		ts := d.PendingTimestamp
		out.PendingTimestamp = &ts
	}
	if d.PresentFlags&FlagDelayTimer != 0 {
		delay := d.DelayTimer
		out.DelayTimer = &delay
	}
	return json.Marshal(out)
}

// UnmarshalJSON sets the present flag of every field the document carries.
func (d *PendingOperationalDataset) UnmarshalJSON(data []byte) error {
	var in pendingJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = PendingOperationalDataset{}
	if err := d.fromActiveJSON(in.activeJSON); err != nil {
		return err
	}
	if in.PendingTimestamp != nil {
		d.PendingTimestamp = *in.PendingTimestamp
		d.PresentFlags |= FlagPendingTimestamp
	}
	if in.DelayTimer != nil {
		d.DelayTimer = *in.DelayTimer
		d.PresentFlags |= FlagDelayTimer
	}
	return nil
}

type commissionerJSON struct {
	BorderAgentLocator *uint16 `json:"BorderAgentLocator,omitempty"`
	SessionId          *uint16 `json:"SessionId,omitempty"`
	SteeringData       *string `json:"SteeringData,omitempty"`
	AeSteeringData     *string `json:"AeSteeringData,omitempty"`
	NmkpSteeringData   *string `json:"NmkpSteeringData,omitempty"`
	JoinerUdpPort      *uint16 `json:"JoinerUdpPort,omitempty"`
	AeUdpPort          *uint16 `json:"AeUdpPort,omitempty"`
	NmkpUdpPort        *uint16 `json:"NmkpUdpPort,omitempty"`
}

// MarshalJSON emits only the present fields.
func (d CommissionerDataset) MarshalJSON() ([]byte, error) {
	var out commissionerJSON
	if d.PresentFlags&FlagBorderAgentLocator != 0 {
		v := d.BorderAgentLocator
		out.BorderAgentLocator = &v
	}
	if d.PresentFlags&FlagSessionId != 0 {
		v := d.SessionId
		out.SessionId = &v
	}
	if d.PresentFlags&FlagSteeringData != 0 {
		out.SteeringData = hexString(d.SteeringData)
	}
	if d.PresentFlags&FlagAeSteeringData != 0 {
		out.AeSteeringData = hexString(d.AeSteeringData)
	}
	if d.PresentFlags&FlagNmkpSteeringData != 0 {
		out.NmkpSteeringData = hexString(d.NmkpSteeringData)
	}
	if d.PresentFlags&FlagJoinerUdpPort != 0 {
		v := d.JoinerUdpPort
		out.JoinerUdpPort = &v
	}
	if d.PresentFlags&FlagAeUdpPort != 0 {
		v := d.AeUdpPort
		out.AeUdpPort = &v
	}
	if d.PresentFlags&FlagNmkpUdpPort != 0 {
		v := d.NmkpUdpPort
		out.NmkpUdpPort = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON sets the present flag of every field the document carries.
func (d *CommissionerDataset) UnmarshalJSON(data []byte) error {
	var in commissionerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = CommissionerDataset{}
	if in.BorderAgentLocator != nil {
		d.BorderAgentLocator = *in.BorderAgentLocator
		d.PresentFlags |= FlagBorderAgentLocator
	}
	if in.SessionId != nil {
		d.SessionId = *in.SessionId
		d.PresentFlags |= FlagSessionId
	}
	if in.SteeringData != nil {
		b, err := hexBytes(*in.SteeringData)
		if err != nil {
			return err
		}
		d.SteeringData = b
		d.PresentFlags |= FlagSteeringData
	}
	if in.AeSteeringData != nil {
		b, err := hexBytes(*in.AeSteeringData)
		if err != nil {
			return err
		}
		d.AeSteeringData = b
		d.PresentFlags |= FlagAeSteeringData
	}
	if in.NmkpSteeringData != nil {
		b, err := hexBytes(*in.NmkpSteeringData)
		if err != nil {
			return err
		}
		d.NmkpSteeringData = b
		d.PresentFlags |= FlagNmkpSteeringData
	}
	if in.JoinerUdpPort != nil {
		d.JoinerUdpPort = *in.JoinerUdpPort
		d.PresentFlags |= FlagJoinerUdpPort
	}
	if in.AeUdpPort != nil {
		d.AeUdpPort = *in.AeUdpPort
		d.PresentFlags |= FlagAeUdpPort
	}
	if in.NmkpUdpPort != nil {
		d.NmkpUdpPort = *in.NmkpUdpPort
		d.PresentFlags |= FlagNmkpUdpPort
	}
	return nil
}

type bbrJSON struct {
	TriHostname       *string `json:"TriHostname,omitempty"`
	RegistrarHostname *string `json:"RegistrarHostname,omitempty"`
	RegistrarIpv6Addr *string `json:"RegistrarIpv6Addr,omitempty"`
}

// MarshalJSON emits only the present fields.
func (d BbrDataset) MarshalJSON() ([]byte, error) {
	var out bbrJSON
	if d.PresentFlags&FlagTriHostname != 0 {
		v := d.TriHostname
		out.TriHostname = &v
	}
	if d.PresentFlags&FlagRegistrarHostname != 0 {
		v := d.RegistrarHostname
		out.RegistrarHostname = &v
	}
	if d.PresentFlags&FlagRegistrarIpv6Addr != 0 {
		v := d.RegistrarIpv6Addr
		out.RegistrarIpv6Addr = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON sets the present flag of every field the document carries.
func (d *BbrDataset) UnmarshalJSON(data []byte) error {
	var in bbrJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = BbrDataset{}
	if in.TriHostname != nil {
		d.TriHostname = *in.TriHostname
		d.PresentFlags |= FlagTriHostname
	}
	if in.RegistrarHostname != nil {
		d.RegistrarHostname = *in.RegistrarHostname
		d.PresentFlags |= FlagRegistrarHostname
	}
	if in.RegistrarIpv6Addr != nil {
		d.RegistrarIpv6Addr = *in.RegistrarIpv6Addr
		d.PresentFlags |= FlagRegistrarIpv6Addr
	}
	return nil
}
