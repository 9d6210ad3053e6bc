package dataset

// Merge overlays src onto d: every field present in src replaces the
// field in d and sets its flag. Fields absent from src are untouched.
func (d *ActiveOperationalDataset) Merge(src ActiveOperationalDataset) {
	if src.PresentFlags&FlagActiveTimestamp != 0 {
		d.ActiveTimestamp = src.ActiveTimestamp
		d.PresentFlags |= FlagActiveTimestamp
	}
	if src.PresentFlags&FlagChannel != 0 {
		d.Channel = src.Channel
		d.PresentFlags |= FlagChannel
	}
	if src.PresentFlags&FlagChannelMask != 0 {
		d.ChannelMask = src.ChannelMask
		d.PresentFlags |= FlagChannelMask
	}
	if src.PresentFlags&FlagExtendedPanId != 0 {
		d.ExtendedPanId = src.ExtendedPanId
		d.PresentFlags |= FlagExtendedPanId
	}
	if src.PresentFlags&FlagMeshLocalPrefix != 0 {
		d.MeshLocalPrefix = src.MeshLocalPrefix
		d.PresentFlags |= FlagMeshLocalPrefix
	}
	if src.PresentFlags&FlagNetworkMasterKey != 0 {
		d.NetworkMasterKey = src.NetworkMasterKey
		d.PresentFlags |= FlagNetworkMasterKey
	}
	if src.PresentFlags&FlagNetworkName != 0 {
		d.NetworkName = src.NetworkName
		d.PresentFlags |= FlagNetworkName
	}
	if src.PresentFlags&FlagPanId != 0 {
		d.PanId = src.PanId
		d.PresentFlags |= FlagPanId
	}
	if src.PresentFlags&FlagPSKc != 0 {
		d.PSKc = src.PSKc
		d.PresentFlags |= FlagPSKc
	}
	if src.PresentFlags&FlagSecurityPolicy != 0 {
		d.SecurityPolicy = src.SecurityPolicy
		d.PresentFlags |= FlagSecurityPolicy
	}
}

// Merge overlays src onto d, including the pending-only fields.
func (d *PendingOperationalDataset) Merge(src PendingOperationalDataset) {
	d.ActiveOperationalDataset.Merge(src.ActiveOperationalDataset)

	if src.PresentFlags&FlagPendingTimestamp != 0 {
		d.PendingTimestamp = src.PendingTimestamp
		d.PresentFlags |= FlagPendingTimestamp
	}
	if src.PresentFlags&FlagDelayTimer != 0 {
		d.DelayTimer = src.DelayTimer
		d.PresentFlags |= FlagDelayTimer
	}
}

// Merge overlays src onto d with the Commissioner-Dataset rules: the
// steering-data and joiner-UDP-port fields are absence-meaningful, so a
// field absent from src is cleared in d. SessionId and
// BorderAgentLocator follow the plain overlay rule. This mirrors
// MGMT_COMMISSIONER_GET responses, where the server omits a field that
// has been cleared mesh-wide.
func (d *CommissionerDataset) Merge(src CommissionerDataset) {
	if src.PresentFlags&FlagBorderAgentLocator != 0 {
		d.BorderAgentLocator = src.BorderAgentLocator
		d.PresentFlags |= FlagBorderAgentLocator
	}
	if src.PresentFlags&FlagSessionId != 0 {
		d.SessionId = src.SessionId
		d.PresentFlags |= FlagSessionId
	}

	if src.PresentFlags&FlagSteeringData != 0 {
		d.SteeringData = src.SteeringData
		d.PresentFlags |= FlagSteeringData
	} else {
		d.PresentFlags &^= FlagSteeringData
	}
	if src.PresentFlags&FlagAeSteeringData != 0 {
		d.AeSteeringData = src.AeSteeringData
		d.PresentFlags |= FlagAeSteeringData
	} else {
		d.PresentFlags &^= FlagAeSteeringData
	}
	if src.PresentFlags&FlagNmkpSteeringData != 0 {
		d.NmkpSteeringData = src.NmkpSteeringData
		d.PresentFlags |= FlagNmkpSteeringData
	} else {
		d.PresentFlags &^= FlagNmkpSteeringData
	}
	if src.PresentFlags&FlagJoinerUdpPort != 0 {
		d.JoinerUdpPort = src.JoinerUdpPort
		d.PresentFlags |= FlagJoinerUdpPort
	} else {
		d.PresentFlags &^= FlagJoinerUdpPort
	}
	if src.PresentFlags&FlagAeUdpPort != 0 {
		d.AeUdpPort = src.AeUdpPort
		d.PresentFlags |= FlagAeUdpPort
	} else {
		d.PresentFlags &^= FlagAeUdpPort
	}
	if src.PresentFlags&FlagNmkpUdpPort != 0 {
		d.NmkpUdpPort = src.NmkpUdpPort
		d.PresentFlags |= FlagNmkpUdpPort
	} else {
		d.PresentFlags &^= FlagNmkpUdpPort
	}
}

// Merge overlays src onto d.
func (d *BbrDataset) Merge(src BbrDataset) {
	if src.PresentFlags&FlagTriHostname != 0 {
		d.TriHostname = src.TriHostname
		d.PresentFlags |= FlagTriHostname
	}
	if src.PresentFlags&FlagRegistrarHostname != 0 {
		d.RegistrarHostname = src.RegistrarHostname
		d.PresentFlags |= FlagRegistrarHostname
	}
	if src.PresentFlags&FlagRegistrarIpv6Addr != 0 {
		d.RegistrarIpv6Addr = src.RegistrarIpv6Addr
		d.PresentFlags |= FlagRegistrarIpv6Addr
	}
}

// Sanitize clears the network-assigned fields so the dataset is safe to
// send in a MGMT_COMMISSIONER_SET request.
func (d *CommissionerDataset) Sanitize() {
	d.PresentFlags &^= FlagSessionId
	d.PresentFlags &^= FlagBorderAgentLocator
}
