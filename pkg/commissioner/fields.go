package commissioner

import (
	"context"
	"fmt"
	"time"

	"github.com/meshcop/commissioner-go/pkg/dataset"
)

// Field-level accessors all follow the same shape: the session must be
// Active; a read serves from the cache when the present flag is set and
// otherwise issues a GET naming exactly the missing TLV; a write builds
// a one-field delta and updates the cache only after the network
// accepts. Fields that a pending change can move underneath us
// (channel, PAN ID, master key, mesh-local prefix) are re-fetched on
// every read. The Commissioner Dataset reads (GetBorderAgentLocator,
// GetSteeringData, GetJoinerUdpPort) serve from the cache only: an
// absent field yields ErrNotFound and no GET is issued.

// ensureActiveField makes sure flag is present in the active-dataset
// cache, fetching it when absent or when refresh is forced.
func (c *Commissioner) ensureActiveField(ctx context.Context, flag uint16, refresh bool) error {
	c.mu.Lock()
	present := c.activeDataset.PresentFlags&flag != 0
	c.mu.Unlock()

	if present && !refresh {
		// The Active precondition still applies to cached reads.
		_, err := c.activeTransport()
		return err
	}
	_, err := c.GetActiveDataset(ctx, flag)
	return err
}

// GetActiveTimestamp returns the Active Timestamp.
func (c *Commissioner) GetActiveTimestamp(ctx context.Context) (dataset.Timestamp, error) {
	if err := c.ensureActiveField(ctx, dataset.FlagActiveTimestamp, false); err != nil {
		return dataset.Timestamp{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeDataset.PresentFlags&dataset.FlagActiveTimestamp == 0 {
		return dataset.Timestamp{}, fmt.Errorf("%w: no Active Timestamp in Active Operational Dataset", ErrNotFound)
	}
	return c.activeDataset.ActiveTimestamp, nil
}

// GetChannel returns the channel in force. The read always consults the
// Leader: a pending dataset may commit a channel change at any time.
func (c *Commissioner) GetChannel(ctx context.Context) (dataset.Channel, error) {
	if err := c.ensureActiveField(ctx, dataset.FlagChannel, true); err != nil {
		return dataset.Channel{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeDataset.PresentFlags&dataset.FlagChannel == 0 {
		return dataset.Channel{}, fmt.Errorf("%w: no Channel in Active Operational Dataset", ErrNotFound)
	}
	return c.activeDataset.Channel, nil
}

// SetChannel stages a channel change through the Pending Operational
// Dataset; the Leader commits it after delay elapses.
func (c *Commissioner) SetChannel(ctx context.Context, channel dataset.Channel, delay time.Duration) error {
	var pending dataset.PendingOperationalDataset
	pending.Channel = channel
	pending.DelayTimer = uint32(delay.Milliseconds())
	pending.PresentFlags = dataset.FlagChannel | dataset.FlagDelayTimer
	return c.SetPendingDataset(ctx, pending)
}

// GetChannelMask returns the Channel Mask.
func (c *Commissioner) GetChannelMask(ctx context.Context) (dataset.ChannelMask, error) {
	if err := c.ensureActiveField(ctx, dataset.FlagChannelMask, false); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeDataset.PresentFlags&dataset.FlagChannelMask == 0 {
		return nil, fmt.Errorf("%w: no Channel Mask in Active Operational Dataset", ErrNotFound)
	}
	return c.activeDataset.ChannelMask, nil
}

// SetChannelMask writes the Channel Mask.
func (c *Commissioner) SetChannelMask(ctx context.Context, mask dataset.ChannelMask) error {
	ds := dataset.ActiveOperationalDataset{ChannelMask: mask, PresentFlags: dataset.FlagChannelMask}
	return c.SetActiveDataset(ctx, ds)
}

// GetExtendedPanId returns the Extended PAN ID.
func (c *Commissioner) GetExtendedPanId(ctx context.Context) ([]byte, error) {
	if err := c.ensureActiveField(ctx, dataset.FlagExtendedPanId, false); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeDataset.PresentFlags&dataset.FlagExtendedPanId == 0 {
		return nil, fmt.Errorf("%w: no Extended PAN ID in Active Operational Dataset", ErrNotFound)
	}
	return c.activeDataset.ExtendedPanId, nil
}

// SetExtendedPanId writes the Extended PAN ID.
func (c *Commissioner) SetExtendedPanId(ctx context.Context, extPanId []byte) error {
	if len(extPanId) != 8 {
		return fmt.Errorf("%w: extended PAN ID must be 8 bytes", ErrInvalidArgs)
	}
	ds := dataset.ActiveOperationalDataset{ExtendedPanId: extPanId, PresentFlags: dataset.FlagExtendedPanId}
	return c.SetActiveDataset(ctx, ds)
}

// GetMeshLocalPrefix returns the mesh-local /64. The read always
// consults the Leader.
func (c *Commissioner) GetMeshLocalPrefix(ctx context.Context) ([]byte, error) {
	if err := c.ensureActiveField(ctx, dataset.FlagMeshLocalPrefix, true); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeDataset.PresentFlags&dataset.FlagMeshLocalPrefix == 0 {
		return nil, fmt.Errorf("%w: no Mesh-Local Prefix in Active Operational Dataset", ErrNotFound)
	}
	return c.activeDataset.MeshLocalPrefix, nil
}

// SetMeshLocalPrefix stages a mesh-local prefix change through the
// Pending Operational Dataset.
func (c *Commissioner) SetMeshLocalPrefix(ctx context.Context, prefix []byte, delay time.Duration) error {
	if err := dataset.ValidateMeshLocalPrefix(prefix); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	var pending dataset.PendingOperationalDataset
	pending.MeshLocalPrefix = prefix
	pending.DelayTimer = uint32(delay.Milliseconds())
	pending.PresentFlags = dataset.FlagMeshLocalPrefix | dataset.FlagDelayTimer
	return c.SetPendingDataset(ctx, pending)
}

// GetNetworkMasterKey returns the network master key. The read always
// consults the Leader.
func (c *Commissioner) GetNetworkMasterKey(ctx context.Context) ([]byte, error) {
	if err := c.ensureActiveField(ctx, dataset.FlagNetworkMasterKey, true); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeDataset.PresentFlags&dataset.FlagNetworkMasterKey == 0 {
		return nil, fmt.Errorf("%w: no Network Master Key in Active Operational Dataset", ErrNotFound)
	}
	return c.activeDataset.NetworkMasterKey, nil
}

// SetNetworkMasterKey stages a master key rotation through the Pending
// Operational Dataset.
func (c *Commissioner) SetNetworkMasterKey(ctx context.Context, masterKey []byte, delay time.Duration) error {
	if len(masterKey) != 16 {
		return fmt.Errorf("%w: network master key must be 16 bytes", ErrInvalidArgs)
	}
	var pending dataset.PendingOperationalDataset
	pending.NetworkMasterKey = masterKey
	pending.DelayTimer = uint32(delay.Milliseconds())
	pending.PresentFlags = dataset.FlagNetworkMasterKey | dataset.FlagDelayTimer
	return c.SetPendingDataset(ctx, pending)
}

// GetNetworkName returns the network name.
func (c *Commissioner) GetNetworkName(ctx context.Context) (string, error) {
	if err := c.ensureActiveField(ctx, dataset.FlagNetworkName, false); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeDataset.PresentFlags&dataset.FlagNetworkName == 0 {
		return "", fmt.Errorf("%w: no Network Name in Active Operational Dataset", ErrNotFound)
	}
	return c.activeDataset.NetworkName, nil
}

// SetNetworkName writes the network name.
func (c *Commissioner) SetNetworkName(ctx context.Context, name string) error {
	if err := dataset.ValidateNetworkName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	ds := dataset.ActiveOperationalDataset{NetworkName: name, PresentFlags: dataset.FlagNetworkName}
	return c.SetActiveDataset(ctx, ds)
}

// GetPanId returns the PAN ID. The read always consults the Leader.
func (c *Commissioner) GetPanId(ctx context.Context) (uint16, error) {
	if err := c.ensureActiveField(ctx, dataset.FlagPanId, true); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeDataset.PresentFlags&dataset.FlagPanId == 0 {
		return 0, fmt.Errorf("%w: no PAN ID in Active Operational Dataset", ErrNotFound)
	}
	return c.activeDataset.PanId, nil
}

// SetPanId stages a PAN ID change through the Pending Operational
// Dataset.
func (c *Commissioner) SetPanId(ctx context.Context, panId uint16, delay time.Duration) error {
	var pending dataset.PendingOperationalDataset
	pending.PanId = panId
	pending.DelayTimer = uint32(delay.Milliseconds())
	pending.PresentFlags = dataset.FlagPanId | dataset.FlagDelayTimer
	return c.SetPendingDataset(ctx, pending)
}

// GetPSKc returns the PSKc.
func (c *Commissioner) GetPSKc(ctx context.Context) ([]byte, error) {
	if err := c.ensureActiveField(ctx, dataset.FlagPSKc, false); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeDataset.PresentFlags&dataset.FlagPSKc == 0 {
		return nil, fmt.Errorf("%w: no PSKc in Active Operational Dataset", ErrNotFound)
	}
	return c.activeDataset.PSKc, nil
}

// SetPSKc writes the PSKc.
func (c *Commissioner) SetPSKc(ctx context.Context, pskc []byte) error {
	if len(pskc) != 16 {
		return fmt.Errorf("%w: PSKc must be 16 bytes", ErrInvalidArgs)
	}
	ds := dataset.ActiveOperationalDataset{PSKc: pskc, PresentFlags: dataset.FlagPSKc}
	return c.SetActiveDataset(ctx, ds)
}

// GetSecurityPolicy returns the security policy.
func (c *Commissioner) GetSecurityPolicy(ctx context.Context) (dataset.SecurityPolicy, error) {
	if err := c.ensureActiveField(ctx, dataset.FlagSecurityPolicy, false); err != nil {
		return dataset.SecurityPolicy{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeDataset.PresentFlags&dataset.FlagSecurityPolicy == 0 {
		return dataset.SecurityPolicy{}, fmt.Errorf("%w: no Security Policy in Active Operational Dataset", ErrNotFound)
	}
	return c.activeDataset.SecurityPolicy, nil
}

// SetSecurityPolicy writes the security policy.
func (c *Commissioner) SetSecurityPolicy(ctx context.Context, policy dataset.SecurityPolicy) error {
	ds := dataset.ActiveOperationalDataset{SecurityPolicy: policy, PresentFlags: dataset.FlagSecurityPolicy}
	return c.SetActiveDataset(ctx, ds)
}

// GetBorderAgentLocator returns the RLOC-derived Border Agent Locator
// assigned by the network.
func (c *Commissioner) GetBorderAgentLocator() (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return 0, fmt.Errorf("%w: the commissioner is not active", ErrInvalidState)
	}
	if c.commDataset.PresentFlags&dataset.FlagBorderAgentLocator == 0 {
		return 0, fmt.Errorf("%w: no Border Agent Locator in Commissioner Dataset", ErrNotFound)
	}
	return c.commDataset.BorderAgentLocator, nil
}

// GetSteeringData returns the steering data of the given joiner type.
func (c *Commissioner) GetSteeringData(joinerType JoinerType) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return nil, fmt.Errorf("%w: the commissioner is not active", ErrInvalidState)
	}
	flag, err := steeringFlag(joinerType)
	if err != nil {
		return nil, err
	}
	if c.commDataset.PresentFlags&flag == 0 {
		return nil, fmt.Errorf("%w: no %s steering data in Commissioner Dataset", ErrNotFound, joinerType)
	}
	switch joinerType {
	case JoinerTypeAE:
		return c.commDataset.AeSteeringData, nil
	case JoinerTypeNMKP:
		return c.commDataset.NmkpSteeringData, nil
	default:
		return c.commDataset.SteeringData, nil
	}
}

// GetJoinerUdpPort returns the joiner UDP port of the given type.
func (c *Commissioner) GetJoinerUdpPort(joinerType JoinerType) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return 0, fmt.Errorf("%w: the commissioner is not active", ErrInvalidState)
	}
	flag, err := udpPortFlag(joinerType)
	if err != nil {
		return 0, err
	}
	if c.commDataset.PresentFlags&flag == 0 {
		return 0, fmt.Errorf("%w: no %s joiner UDP port in Commissioner Dataset", ErrNotFound, joinerType)
	}
	switch joinerType {
	case JoinerTypeAE:
		return c.commDataset.AeUdpPort, nil
	case JoinerTypeNMKP:
		return c.commDataset.NmkpUdpPort, nil
	default:
		return c.commDataset.JoinerUdpPort, nil
	}
}

// SetJoinerUdpPort writes the joiner UDP port of the given type through
// a Commissioner Dataset delta.
func (c *Commissioner) SetJoinerUdpPort(ctx context.Context, joinerType JoinerType, port uint16) error {
	c.mu.Lock()
	ds := c.commDataset
	c.mu.Unlock()

	flag, err := udpPortFlag(joinerType)
	if err != nil {
		return err
	}
	switch joinerType {
	case JoinerTypeAE:
		ds.AeUdpPort = port
	case JoinerTypeNMKP:
		ds.NmkpUdpPort = port
	default:
		ds.JoinerUdpPort = port
	}
	ds.PresentFlags |= flag
	return c.SetCommissionerDataset(ctx, ds)
}

// GetTriHostname returns the TRI hostname of the BBR dataset. CCM only.
func (c *Commissioner) GetTriHostname(ctx context.Context) (string, error) {
	if err := c.ensureBbrField(ctx, dataset.FlagTriHostname); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bbrDataset.PresentFlags&dataset.FlagTriHostname == 0 {
		return "", fmt.Errorf("%w: no TRI hostname in BBR Dataset", ErrNotFound)
	}
	return c.bbrDataset.TriHostname, nil
}

// SetTriHostname writes the TRI hostname. CCM only.
func (c *Commissioner) SetTriHostname(ctx context.Context, hostname string) error {
	ds := dataset.BbrDataset{TriHostname: hostname, PresentFlags: dataset.FlagTriHostname}
	return c.SetBbrDataset(ctx, ds)
}

// GetRegistrarHostname returns the registrar hostname. CCM only.
func (c *Commissioner) GetRegistrarHostname(ctx context.Context) (string, error) {
	if err := c.ensureBbrField(ctx, dataset.FlagRegistrarHostname); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bbrDataset.PresentFlags&dataset.FlagRegistrarHostname == 0 {
		return "", fmt.Errorf("%w: no registrar hostname in BBR Dataset", ErrNotFound)
	}
	return c.bbrDataset.RegistrarHostname, nil
}

// SetRegistrarHostname writes the registrar hostname. CCM only.
func (c *Commissioner) SetRegistrarHostname(ctx context.Context, hostname string) error {
	ds := dataset.BbrDataset{RegistrarHostname: hostname, PresentFlags: dataset.FlagRegistrarHostname}
	return c.SetBbrDataset(ctx, ds)
}

// GetRegistrarIpv6Addr returns the registrar IPv6 address. CCM only;
// the field is read-only.
func (c *Commissioner) GetRegistrarIpv6Addr(ctx context.Context) (string, error) {
	if err := c.ensureBbrField(ctx, dataset.FlagRegistrarIpv6Addr); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bbrDataset.PresentFlags&dataset.FlagRegistrarIpv6Addr == 0 {
		return "", fmt.Errorf("%w: no registrar IPv6 address in BBR Dataset", ErrNotFound)
	}
	return c.bbrDataset.RegistrarIpv6Addr, nil
}

func (c *Commissioner) ensureBbrField(ctx context.Context, flag uint16) error {
	c.mu.Lock()
	present := c.bbrDataset.PresentFlags&flag != 0
	c.mu.Unlock()
	if present {
		// CCM gating and the Active precondition still apply to cached
		// reads.
		_, err := c.ccmTransport()
		return err
	}
	_, err := c.GetBbrDataset(ctx, flag)
	return err
}

func steeringFlag(t JoinerType) (uint16, error) {
	switch t {
	case JoinerTypeMeshCoP:
		return dataset.FlagSteeringData, nil
	case JoinerTypeAE:
		return dataset.FlagAeSteeringData, nil
	case JoinerTypeNMKP:
		return dataset.FlagNmkpSteeringData, nil
	default:
		return 0, fmt.Errorf("%w: unknown joiner type %d", ErrInvalidArgs, t)
	}
}

func udpPortFlag(t JoinerType) (uint16, error) {
	switch t {
	case JoinerTypeMeshCoP:
		return dataset.FlagJoinerUdpPort, nil
	case JoinerTypeAE:
		return dataset.FlagAeUdpPort, nil
	case JoinerTypeNMKP:
		return dataset.FlagNmkpUdpPort, nil
	default:
		return 0, fmt.Errorf("%w: unknown joiner type %d", ErrInvalidArgs, t)
	}
}
