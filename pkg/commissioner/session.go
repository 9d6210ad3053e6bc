package commissioner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meshcop/commissioner-go/pkg/meshcop"
)

// State is the session lifecycle state.
type State uint8

// Session states. Terminal errors fold back to StateDisabled.
const (
	StateDisabled State = iota
	StatePetitioning
	StateActive
	StateResigning
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisabled:
		return "DISABLED"
	case StatePetitioning:
		return "PETITIONING"
	case StateActive:
		return "ACTIVE"
	case StateResigning:
		return "RESIGNING"
	default:
		return "UNKNOWN"
	}
}

// keepAliveFailureBudget is the number of consecutive keepalive
// transport failures at which the session is declared lost.
const keepAliveFailureBudget = 3

// resignTimeout bounds the final LEAD_KA.req of a resignation.
const resignTimeout = 5 * time.Second

// Start petitions the Border Agent at addr:port for the exclusive
// commissioner role. On acceptance the session becomes Active, the
// keepalive loop starts, and the network data is pulled into the local
// caches. On rejection the rival's commissioner ID is returned together
// with an ErrRejected error, and the session folds back to Disabled.
//
// At most one petition may be pending per Commissioner.
func (c *Commissioner) Start(ctx context.Context, addr string, port uint16) (existingCommissionerId string, err error) {
	c.mu.Lock()
	if c.state != StateDisabled {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: session is %s", ErrInvalidState, c.state)
	}
	c.state = StatePetitioning
	c.mu.Unlock()

	fail := func(err error) (string, error) {
		c.mu.Lock()
		c.state = StateDisabled
		c.mu.Unlock()
		return "", err
	}

	transport, err := c.dialer.Dial(ctx, addr, port)
	if err != nil {
		return fail(fmt.Errorf("dialing border agent %s:%d: %w", addr, port, err))
	}
	transport.SetEventHandlers(c.eventHandlers())

	result, err := transport.Petition(ctx, c.config.Id)
	if err != nil {
		transport.Close()
		return fail(fmt.Errorf("petitioning: %w", err))
	}

	if result.State != meshcop.StateAccept {
		transport.Close()
		c.mu.Lock()
		c.state = StateDisabled
		c.mu.Unlock()
		return result.ExistingCommissionerId, fmt.Errorf("%w: petition", ErrRejected)
	}

	c.mu.Lock()
	c.state = StateActive
	c.sessionId = result.SessionId
	c.borderAgentAddr = addr
	c.borderAgentPort = port
	c.transport = transport
	stop := make(chan struct{})
	c.keepAliveStop = stop
	c.mu.Unlock()

	c.logger.WithField("session_id", result.SessionId).Info("petition accepted")
	go c.keepAliveLoop(transport, c.config.KeepAlive(), stop)

	if err := c.PullNetworkData(ctx); err != nil {
		if !c.IsActive() {
			c.Stop()
			return "", err
		}
		return "", fmt.Errorf("pulling network data: %w", err)
	}
	return "", nil
}

// Stop resigns the commissioner role: the keepalive loop is stopped, a
// final LEAD_KA.req with a rejecting State TLV releases the session,
// and the transport is closed. Safe to call in any state.
func (c *Commissioner) Stop() {
	c.mu.Lock()
	if c.state != StateActive {
		transport := c.transport
		c.state = StateDisabled
		c.transport = nil
		c.stopKeepAliveLocked()
		c.mu.Unlock()
		if transport != nil {
			transport.Close()
		}
		return
	}
	c.state = StateResigning
	transport := c.transport
	sessionId := c.sessionId
	c.stopKeepAliveLocked()
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), resignTimeout)
	defer cancel()
	payload := meshcop.TlvSet{
		meshcop.NewInt8(meshcop.TlvState, meshcop.StateReject),
		meshcop.NewUint16(meshcop.TlvCommissionerSessionId, sessionId),
	}
	if _, err := transport.SendRequest(ctx, meshcop.UriKeepAlive, payload, ""); err != nil {
		c.logger.WithError(err).Warn("resignation keepalive failed")
	}

	c.mu.Lock()
	c.state = StateDisabled
	c.transport = nil
	c.mu.Unlock()
	transport.Close()
	c.logger.Info("resigned commissioner role")
}

// AbortRequests cancels every in-flight exchange. The session state is
// untouched; the call is idempotent.
func (c *Commissioner) AbortRequests() {
	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()
	if transport != nil {
		transport.AbortAll()
	}
}

// IsActive reports whether the session holds the commissioner role.
func (c *Commissioner) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateActive
}

// State returns the session lifecycle state.
func (c *Commissioner) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionId returns the assigned commissioner session identifier. It is
// defined only while the session is Active.
func (c *Commissioner) SessionId() (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return 0, fmt.Errorf("%w: the commissioner is not active", ErrInvalidState)
	}
	return c.sessionId, nil
}

// IsCcmMode reports whether the commissioner runs in Commercial
// Commissioning Mode.
func (c *Commissioner) IsCcmMode() bool {
	return c.config.EnableCcm
}

// DomainName returns the configured Thread domain name.
func (c *Commissioner) DomainName() string {
	return c.config.DomainName
}

// OnSessionLost registers a callback fired when the Active session is
// lost outside an explicit Stop.
func (c *Commissioner) OnSessionLost(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionLostHandler = fn
}

func (c *Commissioner) stopKeepAliveLocked() {
	if c.keepAliveStop != nil {
		close(c.keepAliveStop)
		c.keepAliveStop = nil
	}
}

// keepAliveLoop refreshes the session every interval. The loop never
// overlaps itself: each keepalive completes before the next tick is
// considered. Rejection ends the session at once; so does the
// keepAliveFailureBudget-th transport failure in a row.
func (c *Commissioner) keepAliveLoop(transport TransportSession, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		err := c.sendKeepAlive(transport)
		switch {
		case err == nil:
			failures = 0
		case isRejection(err):
			c.handleSessionLost(transport, err)
			return
		default:
			failures++
			c.logger.WithError(err).Warn("keepalive failed")
			if failures >= keepAliveFailureBudget {
				c.handleSessionLost(transport, err)
				return
			}
		}
	}
}

func (c *Commissioner) sendKeepAlive(transport TransportSession) error {
	c.mu.Lock()
	sessionId := c.sessionId
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), resignTimeout)
	defer cancel()

	payload := meshcop.TlvSet{
		meshcop.NewInt8(meshcop.TlvState, meshcop.StateAccept),
		meshcop.NewUint16(meshcop.TlvCommissionerSessionId, sessionId),
	}
	response, err := transport.SendRequest(ctx, meshcop.UriKeepAlive, payload, "")
	if err != nil {
		return err
	}
	return checkState(response)
}

func isRejection(err error) bool {
	return errors.Is(err, ErrRejected)
}

// handleSessionLost folds the session back to Disabled after a lost
// keepalive, unless a newer session replaced the transport meanwhile.
func (c *Commissioner) handleSessionLost(transport TransportSession, err error) {
	c.mu.Lock()
	if c.state != StateActive || c.transport != transport {
		c.mu.Unlock()
		return
	}
	c.state = StateDisabled
	c.transport = nil
	c.stopKeepAliveLocked()
	handler := c.sessionLostHandler
	c.mu.Unlock()

	transport.Close()
	c.logger.WithError(err).Error("commissioner session lost")
	if handler != nil {
		handler(err)
	}
}
