package commissioner

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/meshcop/commissioner-go/pkg/dataset"
	"github.com/meshcop/commissioner-go/pkg/meshcop"
)

// PrimaryBbrAloc16 is the anycast locator of the Primary Backbone
// Router.
const PrimaryBbrAloc16 = 0xFC38

// MlrStatusSuccess is the MLR.rsp status meaning the registration was
// accepted.
const MlrStatusSuccess = 0

// AnnounceBegin asks the targets to announce themselves on the masked
// channels.
func (c *Commissioner) AnnounceBegin(ctx context.Context, channelMask uint32, count uint8, period time.Duration, dstAddr string) error {
	transport, err := c.activeTransport()
	if err != nil {
		return err
	}

	payload := meshcop.TlvSet{
		meshcop.NewBytes(meshcop.TlvChannelMask, dataset.SingleChannelMask(channelMask).Encode()),
		meshcop.NewUint8(meshcop.TlvCount, count),
		meshcop.NewUint16(meshcop.TlvPeriod, uint16(period.Milliseconds())),
	}
	if _, err := transport.SendRequest(ctx, meshcop.UriAnnounceBegin, payload, dstAddr); err != nil {
		return fmt.Errorf("MGMT_ANNOUNCE_BEGIN: %w", err)
	}
	return nil
}

// PanIdQuery asks the targets to scan the masked channels for the given
// PAN ID. Conflicts arrive asynchronously and accumulate in the
// conflict table.
func (c *Commissioner) PanIdQuery(ctx context.Context, channelMask uint32, panId uint16, dstAddr string) error {
	transport, err := c.activeTransport()
	if err != nil {
		return err
	}

	payload := meshcop.TlvSet{
		meshcop.NewBytes(meshcop.TlvChannelMask, dataset.SingleChannelMask(channelMask).Encode()),
		meshcop.NewUint16(meshcop.TlvPanId, panId),
	}
	if _, err := transport.SendRequest(ctx, meshcop.UriPanIdQuery, payload, dstAddr); err != nil {
		return fmt.Errorf("MGMT_PANID_QUERY: %w", err)
	}
	return nil
}

// HasPanIdConflict reports whether a conflict for the PAN ID arrived.
func (c *Commissioner) HasPanIdConflict(panId uint16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.panIdConflicts[panId]
	return ok
}

// PanIdConflicts returns a copy of the conflict table: PAN ID to the
// channel bitmap it was heard on.
func (c *Commissioner) PanIdConflicts() map[uint16]uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint16]uint32, len(c.panIdConflicts))
	for panId, mask := range c.panIdConflicts {
		out[panId] = mask
	}
	return out
}

// EnergyScan asks the targets to measure energy on the masked channels.
// Reports arrive asynchronously and accumulate in the report table.
func (c *Commissioner) EnergyScan(ctx context.Context, channelMask uint32, count uint8, period, scanDuration uint16, dstAddr string) error {
	transport, err := c.activeTransport()
	if err != nil {
		return err
	}

	payload := meshcop.TlvSet{
		meshcop.NewBytes(meshcop.TlvChannelMask, dataset.SingleChannelMask(channelMask).Encode()),
		meshcop.NewUint8(meshcop.TlvCount, count),
		meshcop.NewUint16(meshcop.TlvPeriod, period),
		meshcop.NewUint16(meshcop.TlvScanDuration, scanDuration),
	}
	if _, err := transport.SendRequest(ctx, meshcop.UriEnergyScan, payload, dstAddr); err != nil {
		return fmt.Errorf("MGMT_ED_SCAN: %w", err)
	}
	return nil
}

// GetEnergyReport returns the report received from the peer, if any.
func (c *Commissioner) GetEnergyReport(peerAddr string) (EnergyReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	report, ok := c.energyReports[peerAddr]
	return report, ok
}

// GetAllEnergyReports returns a copy of the report table.
func (c *Commissioner) GetAllEnergyReports() map[string]EnergyReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]EnergyReport, len(c.energyReports))
	for peer, report := range c.energyReports {
		out[peer] = report
	}
	return out
}

// RegisterMulticastListener registers the addresses with the Primary
// BBR for the given lifetime. A non-zero MLR status is surfaced as a
// rejection carrying that status.
func (c *Commissioner) RegisterMulticastListener(ctx context.Context, addrs []string, timeout time.Duration) error {
	transport, err := c.activeTransport()
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: no multicast addresses", ErrInvalidArgs)
	}

	var packed []byte
	for _, addr := range addrs {
		ip := net.ParseIP(addr)
		if ip == nil || ip.To4() != nil {
			return fmt.Errorf("%w: %q is not an IPv6 address", ErrInvalidArgs, addr)
		}
		packed = append(packed, ip.To16()...)
	}

	pbbrAddr, err := c.PrimaryBbrAddr(ctx)
	if err != nil {
		return err
	}

	payload := meshcop.TlvSet{
		meshcop.NewBytes(meshcop.ThreadTlvIpv6Addresses, packed),
		meshcop.NewUint32(meshcop.ThreadTlvTimeout, uint32(timeout.Seconds())),
	}
	response, err := transport.SendRequest(ctx, meshcop.UriMlr, payload, pbbrAddr)
	if err != nil {
		return fmt.Errorf("MLR: %w", err)
	}

	statusTlv, ok := response.Get(meshcop.ThreadTlvStatus)
	if !ok {
		return fmt.Errorf("%w: MLR response carries no Status TLV", ErrTransportFailed)
	}
	status, err := statusTlv.AsUint8()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}
	if status != MlrStatusSuccess {
		return &RejectedError{Status: status}
	}
	return nil
}

// PrimaryBbrAddr resolves the mesh address of the Primary Backbone
// Router from the mesh-local prefix and the fixed ALOC16.
func (c *Commissioner) PrimaryBbrAddr(ctx context.Context) (string, error) {
	prefix, err := c.GetMeshLocalPrefix(ctx)
	if err != nil {
		return "", err
	}
	return MeshLocalAddr(prefix, PrimaryBbrAloc16)
}

// MeshLocalAddr builds the mesh-local RLOC/ALOC address of a locator.
func MeshLocalAddr(meshLocalPrefix []byte, locator uint16) (string, error) {
	if err := dataset.ValidateMeshLocalPrefix(meshLocalPrefix); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	addr := make(net.IP, net.IPv6len)
	copy(addr, meshLocalPrefix)
	// Locator interface identifier: 0000:00FF:FE00:xxxx.
	addr[11] = 0xFF
	addr[12] = 0xFE
	addr[14] = byte(locator >> 8)
	addr[15] = byte(locator)
	return addr.String(), nil
}

// Reenroll asks a CCM device to re-enroll with the registrar.
func (c *Commissioner) Reenroll(ctx context.Context, dstAddr string) error {
	transport, err := c.ccmTransport()
	if err != nil {
		return err
	}
	if _, err := transport.SendRequest(ctx, meshcop.UriReenroll, nil, dstAddr); err != nil {
		return fmt.Errorf("MGMT_REENROLL: %w", err)
	}
	return nil
}

// DomainReset asks a CCM device to reset its domain membership.
func (c *Commissioner) DomainReset(ctx context.Context, dstAddr string) error {
	transport, err := c.ccmTransport()
	if err != nil {
		return err
	}
	if _, err := transport.SendRequest(ctx, meshcop.UriDomainReset, nil, dstAddr); err != nil {
		return fmt.Errorf("MGMT_DOMAIN_RESET: %w", err)
	}
	return nil
}

// Migrate moves a CCM device to the designated network.
func (c *Commissioner) Migrate(ctx context.Context, dstAddr, designatedNetwork string) error {
	if err := dataset.ValidateNetworkName(designatedNetwork); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	transport, err := c.ccmTransport()
	if err != nil {
		return err
	}

	payload := meshcop.TlvSet{meshcop.NewString(meshcop.TlvNetworkName, designatedNetwork)}
	if _, err := transport.SendRequest(ctx, meshcop.UriNetMigrate, payload, dstAddr); err != nil {
		return fmt.Errorf("MGMT_NET_MIGRATE: %w", err)
	}
	return nil
}

// RequestToken performs COM_TOK.req against the registrar at addr:port
// over a dedicated session and caches the received signed token.
func (c *Commissioner) RequestToken(ctx context.Context, addr string, port uint16) ([]byte, error) {
	if !c.config.EnableCcm {
		return nil, fmt.Errorf("%w: the commissioner is not in CCM mode", ErrInvalidState)
	}

	session, err := c.dialer.Dial(ctx, addr, port)
	if err != nil {
		return nil, fmt.Errorf("dialing registrar %s:%d: %w", addr, port, err)
	}
	defer session.Close()

	payload := meshcop.TlvSet{
		meshcop.NewString(meshcop.TlvCommissionerId, c.config.Id),
		meshcop.NewString(meshcop.TlvThreadDomainName, c.config.DomainName),
	}
	response, err := session.SendRequest(ctx, meshcop.UriCommissionerToken, payload, "")
	if err != nil {
		return nil, fmt.Errorf("COM_TOK: %w", err)
	}

	tokenTlv, ok := response.Get(meshcop.TlvCommissionerToken)
	if !ok {
		return nil, fmt.Errorf("%w: COM_TOK response carries no token", ErrSecurity)
	}

	c.mu.Lock()
	c.signedToken = tokenTlv.Value
	c.mu.Unlock()
	return tokenTlv.Value, nil
}

// SetToken validates a signed commissioner token against the signer
// certificate and installs it for subsequent sessions.
func (c *Commissioner) SetToken(signedToken, signerCert []byte) error {
	if !c.config.EnableCcm {
		return fmt.Errorf("%w: the commissioner is not in CCM mode", ErrInvalidState)
	}
	if _, err := c.crypto.VerifyToken(signedToken, signerCert); err != nil {
		return fmt.Errorf("%w: %v", ErrSecurity, err)
	}

	c.mu.Lock()
	c.signedToken = signedToken
	c.mu.Unlock()
	return nil
}

// Token returns the cached COM_TOK signed token.
func (c *Commissioner) Token() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signedToken
}
