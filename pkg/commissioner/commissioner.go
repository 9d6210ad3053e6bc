package commissioner

import (
	"context"
	"fmt"
	"sync"

	"github.com/apex/log"

	"github.com/meshcop/commissioner-go/pkg/dataset"
	"github.com/meshcop/commissioner-go/pkg/meshcop"
	"github.com/meshcop/commissioner-go/pkg/security"
)

// CommissioningHandler decides a joiner's JOIN_FIN.req. Returning true
// admits the joiner and marks its registry entry commissioned.
type CommissioningHandler func(info JoinerInfo, vendorName, vendorModel,
	vendorSwVersion string, vendorStackVersion []byte, provisioningUrl string,
	vendorData []byte) bool

// defaultCommissioningHandler accepts any joiner, the default behavior
// of an on-mesh commissioner.
func defaultCommissioningHandler(JoinerInfo, string, string, string, []byte, string, []byte) bool {
	return true
}

// EnergyReport is one device's answer to an energy scan.
type EnergyReport struct {
	ChannelMask uint32
	EnergyList  []byte
}

// Commissioner is the application-layer controller: it owns the session
// lifecycle against one Border Agent, the four commissioning datasets,
// and the joiner registry.
//
// One mutex guards all mutable state. Synchronous operations run on the
// caller's goroutine; transport callbacks take the same mutex, so every
// cache write is serialized.
type Commissioner struct {
	config Config
	creds  Credentials
	crypto security.Crypto
	dialer Dialer
	logger log.Interface

	mu              sync.Mutex
	state           State
	sessionId       uint16
	borderAgentAddr string
	borderAgentPort uint16
	transport       TransportSession
	keepAliveStop   chan struct{}

	activeDataset  dataset.ActiveOperationalDataset
	pendingDataset dataset.PendingOperationalDataset
	commDataset    dataset.CommissionerDataset
	bbrDataset     dataset.BbrDataset

	joiners        joinerRegistry
	panIdConflicts map[uint16]uint32
	energyReports  map[string]EnergyReport
	signedToken    []byte

	commissioningHandler CommissioningHandler
	sessionLostHandler   func(error)
}

// New builds a Commissioner from a validated configuration. Credential
// loading failures are fatal to creation.
func New(cfg Config, dialer Dialer, logger log.Interface) (*Commissioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	creds, err := cfg.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if dialer == nil {
		return nil, fmt.Errorf("%w: nil transport dialer", ErrInvalidArgs)
	}
	if logger == nil {
		logger = log.Log
	}

	return &Commissioner{
		config:               cfg,
		creds:                creds,
		crypto:               security.DefaultCrypto(),
		dialer:               dialer,
		logger:               logger,
		joiners:              make(joinerRegistry),
		panIdConflicts:       make(map[uint16]uint32),
		energyReports:        make(map[string]EnergyReport),
		commissioningHandler: defaultCommissioningHandler,
	}, nil
}

// Config returns the configuration the commissioner was built from.
func (c *Commissioner) Config() Config {
	return c.config
}

// Credentials returns the loaded key material.
func (c *Commissioner) Credentials() Credentials {
	return c.creds
}

// SetCommissioningHandler replaces the joiner admission decision. A nil
// handler restores the accept-everything default.
func (c *Commissioner) SetCommissioningHandler(handler CommissioningHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if handler == nil {
		handler = defaultCommissioningHandler
	}
	c.commissioningHandler = handler
}

// activeTransport returns the transport while the session is Active.
func (c *Commissioner) activeTransport() (TransportSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.transport == nil {
		return nil, fmt.Errorf("%w: the commissioner is not active", ErrInvalidState)
	}
	return c.transport, nil
}

// ccmTransport additionally requires Commercial Commissioning Mode.
func (c *Commissioner) ccmTransport() (TransportSession, error) {
	if !c.config.EnableCcm {
		return nil, fmt.Errorf("%w: the commissioner is not in CCM mode", ErrInvalidState)
	}
	return c.activeTransport()
}

// checkState validates the State TLV of a management response.
func checkState(response meshcop.TlvSet) error {
	tlv, ok := response.Get(meshcop.TlvState)
	if !ok {
		return fmt.Errorf("%w: response carries no State TLV", ErrTransportFailed)
	}
	state, err := tlv.AsInt8()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}
	if state != meshcop.StateAccept {
		return &RejectedError{Status: uint8(state)}
	}
	return nil
}

// checkOptionalState validates the State TLV when a GET response
// carries one.
func checkOptionalState(response meshcop.TlvSet) error {
	if !response.Contains(meshcop.TlvState) {
		return nil
	}
	return checkState(response)
}

// getTlv builds the Get TLV naming exactly the requested types.
func getTlv(types []meshcop.TlvType) meshcop.Tlv {
	value := make([]byte, len(types))
	for i, t := range types {
		value[i] = byte(t)
	}
	return meshcop.NewBytes(meshcop.TlvGet, value)
}

// GetActiveDataset fetches the selected Active Operational Dataset
// fields from the Leader and merges them into the local cache.
func (c *Commissioner) GetActiveDataset(ctx context.Context, flags uint16) (dataset.ActiveOperationalDataset, error) {
	transport, err := c.activeTransport()
	if err != nil {
		return dataset.ActiveOperationalDataset{}, err
	}

	payload := meshcop.TlvSet{getTlv(dataset.ActiveGetTypes(flags))}
	response, err := transport.SendRequest(ctx, meshcop.UriActiveGet, payload, "")
	if err != nil {
		return dataset.ActiveOperationalDataset{}, fmt.Errorf("MGMT_ACTIVE_GET: %w", err)
	}
	if err := checkOptionalState(response); err != nil {
		return dataset.ActiveOperationalDataset{}, err
	}

	fetched, err := dataset.ActiveFromTlvs(response)
	if err != nil {
		return dataset.ActiveOperationalDataset{}, fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}

	c.mu.Lock()
	c.activeDataset.Merge(fetched)
	c.mu.Unlock()
	return fetched, nil
}

// SetActiveDataset writes an Active Operational Dataset delta to the
// Leader. The cache is updated only after the network accepts.
func (c *Commissioner) SetActiveDataset(ctx context.Context, ds dataset.ActiveOperationalDataset) error {
	transport, err := c.activeTransport()
	if err != nil {
		return err
	}

	response, err := transport.SendRequest(ctx, meshcop.UriActiveSet, ds.ToTlvs(), "")
	if err != nil {
		return fmt.Errorf("MGMT_ACTIVE_SET: %w", err)
	}
	if err := checkState(response); err != nil {
		return err
	}

	c.mu.Lock()
	c.activeDataset.Merge(ds)
	c.mu.Unlock()
	return nil
}

// GetPendingDataset fetches the selected Pending Operational Dataset
// fields and merges them into the local cache.
func (c *Commissioner) GetPendingDataset(ctx context.Context, flags uint16) (dataset.PendingOperationalDataset, error) {
	transport, err := c.activeTransport()
	if err != nil {
		return dataset.PendingOperationalDataset{}, err
	}

	payload := meshcop.TlvSet{getTlv(dataset.PendingGetTypes(flags))}
	response, err := transport.SendRequest(ctx, meshcop.UriPendingGet, payload, "")
	if err != nil {
		return dataset.PendingOperationalDataset{}, fmt.Errorf("MGMT_PENDING_GET: %w", err)
	}
	if err := checkOptionalState(response); err != nil {
		return dataset.PendingOperationalDataset{}, err
	}

	fetched, err := dataset.PendingFromTlvs(response)
	if err != nil {
		return dataset.PendingOperationalDataset{}, fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}

	c.mu.Lock()
	c.pendingDataset.Merge(fetched)
	c.mu.Unlock()
	return fetched, nil
}

// SetPendingDataset writes a Pending Operational Dataset delta. The
// Delay Timer TLV must be present: the Leader commits the change after
// it elapses.
func (c *Commissioner) SetPendingDataset(ctx context.Context, ds dataset.PendingOperationalDataset) error {
	if ds.PresentFlags&dataset.FlagDelayTimer == 0 {
		return fmt.Errorf("%w: pending dataset writes need a delay timer", ErrInvalidArgs)
	}
	transport, err := c.activeTransport()
	if err != nil {
		return err
	}

	response, err := transport.SendRequest(ctx, meshcop.UriPendingSet, ds.ToTlvs(), "")
	if err != nil {
		return fmt.Errorf("MGMT_PENDING_SET: %w", err)
	}
	if err := checkState(response); err != nil {
		return err
	}

	c.mu.Lock()
	c.pendingDataset.Merge(ds)
	c.mu.Unlock()
	return nil
}

// GetCommissionerDataset fetches the selected Commissioner Dataset
// fields. The response is returned without merging into the cache;
// PullNetworkData merges it on every call.
func (c *Commissioner) GetCommissionerDataset(ctx context.Context, flags uint16) (dataset.CommissionerDataset, error) {
	transport, err := c.activeTransport()
	if err != nil {
		return dataset.CommissionerDataset{}, err
	}

	payload := meshcop.TlvSet{getTlv(dataset.CommissionerGetTypes(flags))}
	response, err := transport.SendRequest(ctx, meshcop.UriCommissionerGet, payload, "")
	if err != nil {
		return dataset.CommissionerDataset{}, fmt.Errorf("MGMT_COMMISSIONER_GET: %w", err)
	}
	if err := checkOptionalState(response); err != nil {
		return dataset.CommissionerDataset{}, err
	}

	fetched, err := dataset.CommissionerFromTlvs(response)
	if err != nil {
		return dataset.CommissionerDataset{}, fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}
	return fetched, nil
}

// SetCommissionerDataset writes a Commissioner Dataset delta. The
// network-assigned SessionId and BorderAgentLocator fields are stripped
// before transmission; the cache is updated only after acceptance.
func (c *Commissioner) SetCommissionerDataset(ctx context.Context, ds dataset.CommissionerDataset) error {
	transport, err := c.activeTransport()
	if err != nil {
		return err
	}

	ds.Sanitize()
	response, err := transport.SendRequest(ctx, meshcop.UriCommissionerSet, ds.ToTlvs(), "")
	if err != nil {
		return fmt.Errorf("MGMT_COMMISSIONER_SET: %w", err)
	}
	if err := checkState(response); err != nil {
		return err
	}

	c.mu.Lock()
	c.mergeCommissionerLocked(ds)
	c.mu.Unlock()
	return nil
}

// mergeCommissionerLocked merges an accepted SET delta into the cache.
// The delta carries no session id or locator, so those keep their
// network-assigned values.
func (c *Commissioner) mergeCommissionerLocked(ds dataset.CommissionerDataset) {
	preserved := c.commDataset
	c.commDataset.Merge(ds)
	// The plain-rule fields are untouched by design; restore flags the
	// absence-meaningful merge may not represent for a partial delta.
	c.commDataset.SessionId = preserved.SessionId
	c.commDataset.BorderAgentLocator = preserved.BorderAgentLocator
	c.commDataset.PresentFlags |= preserved.PresentFlags & (dataset.FlagSessionId | dataset.FlagBorderAgentLocator)
}

// GetBbrDataset fetches the selected BBR Dataset fields and merges them
// into the local cache. CCM only.
func (c *Commissioner) GetBbrDataset(ctx context.Context, flags uint16) (dataset.BbrDataset, error) {
	transport, err := c.ccmTransport()
	if err != nil {
		return dataset.BbrDataset{}, err
	}

	payload := meshcop.TlvSet{getTlv(dataset.BbrGetTypes(flags))}
	response, err := transport.SendRequest(ctx, meshcop.UriBbrGet, payload, "")
	if err != nil {
		return dataset.BbrDataset{}, fmt.Errorf("MGMT_BBR_GET: %w", err)
	}
	if err := checkOptionalState(response); err != nil {
		return dataset.BbrDataset{}, err
	}

	fetched, err := dataset.BbrFromTlvs(response)
	if err != nil {
		return dataset.BbrDataset{}, fmt.Errorf("%w: %v", ErrTransportFailed, err)
	}

	c.mu.Lock()
	c.bbrDataset.Merge(fetched)
	c.mu.Unlock()
	return fetched, nil
}

// SetBbrDataset writes a BBR Dataset delta. CCM only.
func (c *Commissioner) SetBbrDataset(ctx context.Context, ds dataset.BbrDataset) error {
	transport, err := c.ccmTransport()
	if err != nil {
		return err
	}

	response, err := transport.SendRequest(ctx, meshcop.UriBbrSet, ds.ToTlvs(), "")
	if err != nil {
		return fmt.Errorf("MGMT_BBR_SET: %w", err)
	}
	if err := checkState(response); err != nil {
		return err
	}

	c.mu.Lock()
	c.bbrDataset.Merge(ds)
	c.mu.Unlock()
	return nil
}
