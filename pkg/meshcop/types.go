package meshcop

// TlvType identifies a MeshCoP TLV.
type TlvType uint8

// MeshCoP TLV types.
const (
	TlvChannel              TlvType = 0
	TlvPanId                TlvType = 1
	TlvExtendedPanId        TlvType = 2
	TlvNetworkName          TlvType = 3
	TlvPSKc                 TlvType = 4
	TlvNetworkMasterKey     TlvType = 5
	TlvNetworkKeySequence   TlvType = 6
	TlvMeshLocalPrefix      TlvType = 7
	TlvSteeringData         TlvType = 8
	TlvBorderAgentLocator   TlvType = 9
	TlvCommissionerId       TlvType = 10
	TlvCommissionerSessionId TlvType = 11
	TlvSecurityPolicy       TlvType = 12
	TlvGet                  TlvType = 13
	TlvActiveTimestamp      TlvType = 14
	TlvCommissionerUdpPort  TlvType = 15
	TlvState                TlvType = 16
	TlvJoinerDtlsEncap      TlvType = 17
	TlvJoinerUdpPort        TlvType = 18
	TlvJoinerIID            TlvType = 19
	TlvJoinerRouterLocator  TlvType = 20
	TlvJoinerRouterKEK      TlvType = 21
	TlvProvisioningURL      TlvType = 32
	TlvVendorName           TlvType = 33
	TlvVendorModel          TlvType = 34
	TlvVendorSWVersion      TlvType = 35
	TlvVendorData           TlvType = 36
	TlvVendorStackVersion   TlvType = 37
	TlvUdpEncapsulation     TlvType = 48
	TlvIpv6Address          TlvType = 49
	TlvPendingTimestamp     TlvType = 51
	TlvDelayTimer           TlvType = 52
	TlvChannelMask          TlvType = 53
	TlvCount                TlvType = 54
	TlvPeriod               TlvType = 55
	TlvScanDuration         TlvType = 56
	TlvEnergyList           TlvType = 57

	// Thread 1.2 Commercial Commissioning Mode TLVs.
	TlvSecureDissemination  TlvType = 58
	TlvThreadDomainName     TlvType = 59
	TlvDomainPrefix         TlvType = 60
	TlvAeSteeringData       TlvType = 61
	TlvNmkpSteeringData     TlvType = 62
	TlvCommissionerToken    TlvType = 63
	TlvCommissionerSignature TlvType = 64
	TlvAeUdpPort            TlvType = 65
	TlvNmkpUdpPort          TlvType = 66
	TlvTriHostname          TlvType = 67
	TlvRegistrarHostname    TlvType = 68
	TlvRegistrarIpv6Address TlvType = 69
)

// Thread network-layer TLV types. These share a separate registry from the
// MeshCoP types above and appear only in backbone messages such as MLR.req.
const (
	ThreadTlvStatus        TlvType = 4
	ThreadTlvTimeout       TlvType = 11
	ThreadTlvIpv6Addresses TlvType = 14
)

// State TLV values carried in MGMT and petition responses.
const (
	StateReject  int8 = -1
	StatePending int8 = 0
	StateAccept  int8 = 1
)

// Management URIs served by the Leader (via the Border Agent relay) and the
// Primary BBR.
const (
	UriPetition        = "/c/lp"
	UriKeepAlive       = "/c/la"
	UriActiveGet       = "/c/ag"
	UriActiveSet       = "/c/as"
	UriPendingGet      = "/c/pg"
	UriPendingSet      = "/c/ps"
	UriCommissionerGet = "/c/cg"
	UriCommissionerSet = "/c/cs"
	UriBbrGet          = "/c/bg"
	UriBbrSet          = "/c/bs"
	UriAnnounceBegin   = "/c/ab"
	UriPanIdQuery      = "/c/pq"
	UriPanIdConflict   = "/c/pc"
	UriEnergyScan      = "/c/es"
	UriEnergyReport    = "/c/er"
	UriDatasetChanged  = "/c/dc"
	UriRelayRx         = "/c/rx"
	UriRelayTx         = "/c/tx"
	UriReenroll        = "/c/re"
	UriDomainReset     = "/c/rt"
	UriNetMigrate      = "/c/mg"
	UriMlr             = "/n/mr"
	UriCommissionerToken = "/.well-known/ccm"
)

// String returns the MeshCoP registry name of the TLV type.
func (t TlvType) String() string {
	switch t {
	case TlvChannel:
		return "Channel"
	case TlvPanId:
		return "PanId"
	case TlvExtendedPanId:
		return "ExtendedPanId"
	case TlvNetworkName:
		return "NetworkName"
	case TlvPSKc:
		return "PSKc"
	case TlvNetworkMasterKey:
		return "NetworkMasterKey"
	case TlvNetworkKeySequence:
		return "NetworkKeySequence"
	case TlvMeshLocalPrefix:
		return "MeshLocalPrefix"
	case TlvSteeringData:
		return "SteeringData"
	case TlvBorderAgentLocator:
		return "BorderAgentLocator"
	case TlvCommissionerId:
		return "CommissionerId"
	case TlvCommissionerSessionId:
		return "CommissionerSessionId"
	case TlvSecurityPolicy:
		return "SecurityPolicy"
	case TlvGet:
		return "Get"
	case TlvActiveTimestamp:
		return "ActiveTimestamp"
	case TlvState:
		return "State"
	case TlvJoinerUdpPort:
		return "JoinerUdpPort"
	case TlvProvisioningURL:
		return "ProvisioningURL"
	case TlvPendingTimestamp:
		return "PendingTimestamp"
	case TlvDelayTimer:
		return "DelayTimer"
	case TlvChannelMask:
		return "ChannelMask"
	case TlvCount:
		return "Count"
	case TlvPeriod:
		return "Period"
	case TlvScanDuration:
		return "ScanDuration"
	case TlvEnergyList:
		return "EnergyList"
	case TlvThreadDomainName:
		return "ThreadDomainName"
	case TlvAeSteeringData:
		return "AeSteeringData"
	case TlvNmkpSteeringData:
		return "NmkpSteeringData"
	case TlvCommissionerToken:
		return "CommissionerToken"
	case TlvCommissionerSignature:
		return "CommissionerSignature"
	case TlvAeUdpPort:
		return "AeUdpPort"
	case TlvNmkpUdpPort:
		return "NmkpUdpPort"
	case TlvTriHostname:
		return "TriHostname"
	case TlvRegistrarHostname:
		return "RegistrarHostname"
	case TlvRegistrarIpv6Address:
		return "RegistrarIpv6Address"
	default:
		return "UNKNOWN"
	}
}
