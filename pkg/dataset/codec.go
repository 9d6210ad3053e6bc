package dataset

import (
	"fmt"

	"github.com/meshcop/commissioner-go/pkg/meshcop"
)

// ToTlvs encodes every present field into its MeshCoP TLV.
func (d ActiveOperationalDataset) ToTlvs() meshcop.TlvSet {
	var set meshcop.TlvSet
	if d.PresentFlags&FlagActiveTimestamp != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvActiveTimestamp, d.ActiveTimestamp.Encode()))
	}
	if d.PresentFlags&FlagChannel != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvChannel, d.Channel.Encode()))
	}
	if d.PresentFlags&FlagChannelMask != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvChannelMask, d.ChannelMask.Encode()))
	}
	if d.PresentFlags&FlagExtendedPanId != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvExtendedPanId, d.ExtendedPanId))
	}
	if d.PresentFlags&FlagMeshLocalPrefix != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvMeshLocalPrefix, d.MeshLocalPrefix))
	}
	if d.PresentFlags&FlagNetworkMasterKey != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvNetworkMasterKey, d.NetworkMasterKey))
	}
	if d.PresentFlags&FlagNetworkName != 0 {
		set = append(set, meshcop.NewString(meshcop.TlvNetworkName, d.NetworkName))
	}
	if d.PresentFlags&FlagPanId != 0 {
		set = append(set, meshcop.NewUint16(meshcop.TlvPanId, d.PanId))
	}
	if d.PresentFlags&FlagPSKc != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvPSKc, d.PSKc))
	}
	if d.PresentFlags&FlagSecurityPolicy != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvSecurityPolicy, d.SecurityPolicy.Encode()))
	}
	return set
}

// ActiveFromTlvs decodes an Active Operational Dataset from a TLV set,
// setting the present flag of every recognized field. Unknown TLVs are
// ignored.
func ActiveFromTlvs(set meshcop.TlvSet) (ActiveOperationalDataset, error) {
	var d ActiveOperationalDataset
	for _, tlv := range set {
		if err := d.applyTlv(tlv); err != nil {
			return ActiveOperationalDataset{}, err
		}
	}
	return d, nil
}

func (d *ActiveOperationalDataset) applyTlv(tlv meshcop.Tlv) error {
	var err error
	switch tlv.Type {
	case meshcop.TlvActiveTimestamp:
		d.ActiveTimestamp, err = DecodeTimestamp(tlv.Value)
		d.PresentFlags |= FlagActiveTimestamp
	case meshcop.TlvChannel:
		d.Channel, err = DecodeChannel(tlv.Value)
		d.PresentFlags |= FlagChannel
	case meshcop.TlvChannelMask:
		d.ChannelMask, err = DecodeChannelMask(tlv.Value)
		d.PresentFlags |= FlagChannelMask
	case meshcop.TlvExtendedPanId:
		d.ExtendedPanId = tlv.Value
		d.PresentFlags |= FlagExtendedPanId
	case meshcop.TlvMeshLocalPrefix:
		if err = ValidateMeshLocalPrefix(tlv.Value); err == nil {
			d.MeshLocalPrefix = tlv.Value
			d.PresentFlags |= FlagMeshLocalPrefix
		}
	case meshcop.TlvNetworkMasterKey:
		d.NetworkMasterKey = tlv.Value
		d.PresentFlags |= FlagNetworkMasterKey
	case meshcop.TlvNetworkName:
		if err = ValidateNetworkName(tlv.AsString()); err == nil {
			d.NetworkName = tlv.AsString()
			d.PresentFlags |= FlagNetworkName
		}
	case meshcop.TlvPanId:
		d.PanId, err = tlv.AsUint16()
		d.PresentFlags |= FlagPanId
	case meshcop.TlvPSKc:
		d.PSKc = tlv.Value
		d.PresentFlags |= FlagPSKc
	case meshcop.TlvSecurityPolicy:
		d.SecurityPolicy, err = DecodeSecurityPolicy(tlv.Value)
		d.PresentFlags |= FlagSecurityPolicy
	}
	if err != nil {
		return fmt.Errorf("decoding %s TLV: %w", tlv.Type, err)
	}
	return nil
}

// ToTlvs encodes every present field, including the pending-only ones.
func (d PendingOperationalDataset) ToTlvs() meshcop.TlvSet {
	set := d.ActiveOperationalDataset.ToTlvs()
	if d.PresentFlags&FlagPendingTimestamp != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvPendingTimestamp, d.PendingTimestamp.Encode()))
	}
	if d.PresentFlags&FlagDelayTimer != 0 {
		set = append(set, meshcop.NewUint32(meshcop.TlvDelayTimer, d.DelayTimer))
	}
	return set
}

// PendingFromTlvs decodes a Pending Operational Dataset from a TLV set.
func PendingFromTlvs(set meshcop.TlvSet) (PendingOperationalDataset, error) {
	var d PendingOperationalDataset
	for _, tlv := range set {
		var err error
		switch tlv.Type {
		case meshcop.TlvPendingTimestamp:
			d.PendingTimestamp, err = DecodeTimestamp(tlv.Value)
			d.PresentFlags |= FlagPendingTimestamp
		case meshcop.TlvDelayTimer:
			d.DelayTimer, err = tlv.AsUint32()
			d.PresentFlags |= FlagDelayTimer
		default:
			err = d.applyTlv(tlv)
		}
		if err != nil {
			return PendingOperationalDataset{}, fmt.Errorf("decoding %s TLV: %w", tlv.Type, err)
		}
	}
	return d, nil
}

// ToTlvs encodes every present field into its MeshCoP TLV. Callers
// sending a SET request must Sanitize first.
func (d CommissionerDataset) ToTlvs() meshcop.TlvSet {
	var set meshcop.TlvSet
	if d.PresentFlags&FlagBorderAgentLocator != 0 {
		set = append(set, meshcop.NewUint16(meshcop.TlvBorderAgentLocator, d.BorderAgentLocator))
	}
	if d.PresentFlags&FlagSessionId != 0 {
		set = append(set, meshcop.NewUint16(meshcop.TlvCommissionerSessionId, d.SessionId))
	}
	if d.PresentFlags&FlagSteeringData != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvSteeringData, d.SteeringData))
	}
	if d.PresentFlags&FlagAeSteeringData != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvAeSteeringData, d.AeSteeringData))
	}
	if d.PresentFlags&FlagNmkpSteeringData != 0 {
		set = append(set, meshcop.NewBytes(meshcop.TlvNmkpSteeringData, d.NmkpSteeringData))
	}
	if d.PresentFlags&FlagJoinerUdpPort != 0 {
		set = append(set, meshcop.NewUint16(meshcop.TlvJoinerUdpPort, d.JoinerUdpPort))
	}
	if d.PresentFlags&FlagAeUdpPort != 0 {
		set = append(set, meshcop.NewUint16(meshcop.TlvAeUdpPort, d.AeUdpPort))
	}
	if d.PresentFlags&FlagNmkpUdpPort != 0 {
		set = append(set, meshcop.NewUint16(meshcop.TlvNmkpUdpPort, d.NmkpUdpPort))
	}
	return set
}

// CommissionerFromTlvs decodes a Commissioner Dataset from a TLV set.
func CommissionerFromTlvs(set meshcop.TlvSet) (CommissionerDataset, error) {
	var d CommissionerDataset
	for _, tlv := range set {
		var err error
		switch tlv.Type {
		case meshcop.TlvBorderAgentLocator:
			d.BorderAgentLocator, err = tlv.AsUint16()
			d.PresentFlags |= FlagBorderAgentLocator
		case meshcop.TlvCommissionerSessionId:
			d.SessionId, err = tlv.AsUint16()
			d.PresentFlags |= FlagSessionId
		case meshcop.TlvSteeringData:
			d.SteeringData = tlv.Value
			d.PresentFlags |= FlagSteeringData
		case meshcop.TlvAeSteeringData:
			d.AeSteeringData = tlv.Value
			d.PresentFlags |= FlagAeSteeringData
		case meshcop.TlvNmkpSteeringData:
			d.NmkpSteeringData = tlv.Value
			d.PresentFlags |= FlagNmkpSteeringData
		case meshcop.TlvJoinerUdpPort:
			d.JoinerUdpPort, err = tlv.AsUint16()
			d.PresentFlags |= FlagJoinerUdpPort
		case meshcop.TlvAeUdpPort:
			d.AeUdpPort, err = tlv.AsUint16()
			d.PresentFlags |= FlagAeUdpPort
		case meshcop.TlvNmkpUdpPort:
			d.NmkpUdpPort, err = tlv.AsUint16()
			d.PresentFlags |= FlagNmkpUdpPort
		}
		if err != nil {
			return CommissionerDataset{}, fmt.Errorf("decoding %s TLV: %w", tlv.Type, err)
		}
	}
	return d, nil
}

// ToTlvs encodes every present field into its MeshCoP TLV.
func (d BbrDataset) ToTlvs() meshcop.TlvSet {
	var set meshcop.TlvSet
	if d.PresentFlags&FlagTriHostname != 0 {
		set = append(set, meshcop.NewString(meshcop.TlvTriHostname, d.TriHostname))
	}
	if d.PresentFlags&FlagRegistrarHostname != 0 {
		set = append(set, meshcop.NewString(meshcop.TlvRegistrarHostname, d.RegistrarHostname))
	}
	if d.PresentFlags&FlagRegistrarIpv6Addr != 0 {
		set = append(set, meshcop.NewString(meshcop.TlvRegistrarIpv6Address, d.RegistrarIpv6Addr))
	}
	return set
}

// BbrFromTlvs decodes a BBR Dataset from a TLV set.
func BbrFromTlvs(set meshcop.TlvSet) (BbrDataset, error) {
	var d BbrDataset
	for _, tlv := range set {
		switch tlv.Type {
		case meshcop.TlvTriHostname:
			d.TriHostname = tlv.AsString()
			d.PresentFlags |= FlagTriHostname
		case meshcop.TlvRegistrarHostname:
			d.RegistrarHostname = tlv.AsString()
			d.PresentFlags |= FlagRegistrarHostname
		case meshcop.TlvRegistrarIpv6Address:
			d.RegistrarIpv6Addr = tlv.AsString()
			d.PresentFlags |= FlagRegistrarIpv6Addr
		}
	}
	return d, nil
}

// ActiveGetTypes lists the TLV types a MGMT_ACTIVE_GET request names
// for the given flag selection. 0xFFFF selects every field.
func ActiveGetTypes(flags uint16) []meshcop.TlvType {
	var types []meshcop.TlvType
	add := func(flag uint16, t meshcop.TlvType) {
		if flags&flag != 0 {
			types = append(types, t)
		}
	}
	add(FlagActiveTimestamp, meshcop.TlvActiveTimestamp)
	add(FlagChannel, meshcop.TlvChannel)
	add(FlagChannelMask, meshcop.TlvChannelMask)
	add(FlagExtendedPanId, meshcop.TlvExtendedPanId)
	add(FlagMeshLocalPrefix, meshcop.TlvMeshLocalPrefix)
	add(FlagNetworkMasterKey, meshcop.TlvNetworkMasterKey)
	add(FlagNetworkName, meshcop.TlvNetworkName)
	add(FlagPanId, meshcop.TlvPanId)
	add(FlagPSKc, meshcop.TlvPSKc)
	add(FlagSecurityPolicy, meshcop.TlvSecurityPolicy)
	return types
}

// PendingGetTypes lists the TLV types a MGMT_PENDING_GET request names.
func PendingGetTypes(flags uint16) []meshcop.TlvType {
	types := ActiveGetTypes(flags)
	if flags&FlagPendingTimestamp != 0 {
		types = append(types, meshcop.TlvPendingTimestamp)
	}
	if flags&FlagDelayTimer != 0 {
		types = append(types, meshcop.TlvDelayTimer)
	}
	return types
}

// CommissionerGetTypes lists the TLV types a MGMT_COMMISSIONER_GET
// request names.
func CommissionerGetTypes(flags uint16) []meshcop.TlvType {
	var types []meshcop.TlvType
	add := func(flag uint16, t meshcop.TlvType) {
		if flags&flag != 0 {
			types = append(types, t)
		}
	}
	add(FlagBorderAgentLocator, meshcop.TlvBorderAgentLocator)
	add(FlagSessionId, meshcop.TlvCommissionerSessionId)
	add(FlagSteeringData, meshcop.TlvSteeringData)
	add(FlagAeSteeringData, meshcop.TlvAeSteeringData)
	add(FlagNmkpSteeringData, meshcop.TlvNmkpSteeringData)
	add(FlagJoinerUdpPort, meshcop.TlvJoinerUdpPort)
	add(FlagAeUdpPort, meshcop.TlvAeUdpPort)
	add(FlagNmkpUdpPort, meshcop.TlvNmkpUdpPort)
	return types
}

// BbrGetTypes lists the TLV types a MGMT_BBR_GET request names.
func BbrGetTypes(flags uint16) []meshcop.TlvType {
	var types []meshcop.TlvType
	add := func(flag uint16, t meshcop.TlvType) {
		if flags&flag != 0 {
			types = append(types, t)
		}
	}
	add(FlagTriHostname, meshcop.TlvTriHostname)
	add(FlagRegistrarHostname, meshcop.TlvRegistrarHostname)
	add(FlagRegistrarIpv6Addr, meshcop.TlvRegistrarIpv6Address)
	return types
}
