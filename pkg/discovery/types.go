// Package discovery finds Thread Border Agents on the local link via
// mDNS and decodes their MeshCoP TXT records.
package discovery

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"time"
)

// mDNS constants of the MeshCoP Border Agent service.
const (
	// ServiceTypeBorderAgent is the service type a Border Agent
	// advertises.
	ServiceTypeBorderAgent = "_meshcop._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// BrowseTimeout is the default timeout for a discovery round.
	BrowseTimeout = 10 * time.Second
)

// TXT record keys of the Border Agent service.
const (
	TXTKeyRecordVersion   = "rv" // record version, "1"
	TXTKeyThreadVersion   = "tv" // Thread stack version string
	TXTKeyStateBitmap     = "sb" // 4-byte big-endian state bitmap
	TXTKeyNetworkName     = "nn" // network name (UTF-8)
	TXTKeyExtendedPanId   = "xp" // 8-byte extended PAN ID
	TXTKeyVendorName      = "vn" // vendor name
	TXTKeyModelName       = "mn" // model name
	TXTKeyActiveTimestamp = "at" // 8-byte active timestamp
	TXTKeyPartitionId     = "pt" // 4-byte partition id
	TXTKeyDomainName      = "dn" // Thread domain name (CCM)
)

// Discovery errors.
var (
	ErrMissingRequired  = errors.New("missing required TXT key")
	ErrInvalidTXTRecord = errors.New("invalid TXT record")
)

// ConnectionMode is the low three bits of the state bitmap.
type ConnectionMode uint8

// Connection modes.
const (
	ConnectionModeDisabled   ConnectionMode = 0
	ConnectionModePskc       ConnectionMode = 1
	ConnectionModePskd       ConnectionMode = 2
	ConnectionModeVendor     ConnectionMode = 3
	ConnectionModeX509       ConnectionMode = 4
)

// String returns the connection mode name.
func (m ConnectionMode) String() string {
	switch m {
	case ConnectionModeDisabled:
		return "DISABLED"
	case ConnectionModePskc:
		return "PSKC"
	case ConnectionModePskd:
		return "PSKD"
	case ConnectionModeVendor:
		return "VENDOR"
	case ConnectionModeX509:
		return "X509"
	default:
		return "UNKNOWN"
	}
}

// BorderAgent is one advertised Border Agent service instance.
type BorderAgent struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Addr is the first resolved address, preferring IPv6.
	Addr string

	// Addresses holds every resolved address.
	Addresses []string

	// Port is the MeshCoP UDP port.
	Port uint16

	// NetworkName is the Thread network name (TXT "nn").
	NetworkName string

	// ExtendedPanId is the 8-byte extended PAN ID (TXT "xp").
	ExtendedPanId []byte

	// StateBitmap packs connection mode, interface status and
	// availability (TXT "sb").
	StateBitmap uint32

	// ThreadVersion is the stack version string (TXT "tv").
	ThreadVersion string

	// VendorName and ModelName describe the device (TXT "vn"/"mn").
	VendorName string
	ModelName  string

	// DomainName is the Thread domain of a CCM-capable agent (TXT "dn").
	DomainName string
}

// ConnectionMode extracts the connection mode from the state bitmap.
func (b BorderAgent) ConnectionMode() ConnectionMode {
	return ConnectionMode(b.StateBitmap & 0x07)
}

// ThreadIfStatus extracts the Thread interface status: 0 off, 1
// initialized, 2 attached.
func (b BorderAgent) ThreadIfStatus() uint8 {
	return uint8(b.StateBitmap >> 3 & 0x03)
}

// Availability extracts the availability field: 0 infrequent, 1 high.
func (b BorderAgent) Availability() uint8 {
	return uint8(b.StateBitmap >> 5 & 0x03)
}

// decodeTXT parses the TXT strings of a service entry into a
// BorderAgent. The network name and extended PAN ID are required; every
// other key is optional.
func decodeTXT(txt []string) (BorderAgent, error) {
	var agent BorderAgent
	keys := make(map[string][]byte)
	for _, record := range txt {
		for i := 0; i < len(record); i++ {
			if record[i] == '=' {
				keys[record[:i]] = []byte(record[i+1:])
				break
			}
		}
	}

	nn, ok := keys[TXTKeyNetworkName]
	if !ok {
		return BorderAgent{}, ErrMissingRequired
	}
	agent.NetworkName = string(nn)

	xp, ok := keys[TXTKeyExtendedPanId]
	if !ok {
		return BorderAgent{}, ErrMissingRequired
	}
	extPanId, err := decodeBinaryKey(xp, 8)
	if err != nil {
		return BorderAgent{}, err
	}
	agent.ExtendedPanId = extPanId

	if sb, ok := keys[TXTKeyStateBitmap]; ok {
		bitmap, err := decodeBinaryKey(sb, 4)
		if err != nil {
			return BorderAgent{}, err
		}
		agent.StateBitmap = binary.BigEndian.Uint32(bitmap)
	}
	if tv, ok := keys[TXTKeyThreadVersion]; ok {
		agent.ThreadVersion = string(tv)
	}
	if vn, ok := keys[TXTKeyVendorName]; ok {
		agent.VendorName = string(vn)
	}
	if mn, ok := keys[TXTKeyModelName]; ok {
		agent.ModelName = string(mn)
	}
	if dn, ok := keys[TXTKeyDomainName]; ok {
		agent.DomainName = string(dn)
	}
	return agent, nil
}

// decodeBinaryKey accepts both the raw binary form and the hex-encoded
// form advertisers use for binary TXT values.
func decodeBinaryKey(value []byte, size int) ([]byte, error) {
	if len(value) == size {
		out := make([]byte, size)
		copy(out, value)
		return out, nil
	}
	if len(value) == 2*size {
		out, err := hex.DecodeString(string(value))
		if err == nil {
			return out, nil
		}
	}
	return nil, ErrInvalidTXTRecord
}
