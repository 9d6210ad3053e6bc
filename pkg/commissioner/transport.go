package commissioner

import (
	"context"

	"github.com/meshcop/commissioner-go/pkg/meshcop"
)

// PetitionResult is the outcome of a LEAD_PET.req exchange.
type PetitionResult struct {
	// State is the State TLV of the response (meshcop.StateAccept or
	// meshcop.StateReject).
	State int8

	// SessionId is the assigned commissioner session identifier, valid
	// on accept.
	SessionId uint16

	// ExistingCommissionerId names the rival holding the session when
	// the petition is rejected; empty otherwise.
	ExistingCommissionerId string
}

// EventHandlers receives the unsolicited messages a Border Agent
// session delivers. Handlers run on the transport's receive loop; work
// that sends follow-up requests must move off that loop.
type EventHandlers struct {
	// OnDatasetChanged signals a MGMT_DATASET_CHANGED notification.
	OnDatasetChanged func()

	// OnPanIdConflict delivers a MGMT_PANID_CONFLICT answer.
	OnPanIdConflict func(peerAddr string, channelMask uint32, panId uint16)

	// OnEnergyReport delivers a MGMT_ED_REPORT answer.
	OnEnergyReport func(peerAddr string, channelMask uint32, energyList []byte)

	// OnJoinerInfo resolves the credential of a joiner knocking on the
	// network. It must answer synchronously: the transport selects the
	// joiner DTLS credential with it.
	OnJoinerInfo func(t JoinerType, joinerId []byte) (JoinerInfo, bool)

	// OnJoinerFinalize decides a joiner's JOIN_FIN.req. Returning true
	// admits the joiner.
	OnJoinerFinalize func(t JoinerType, joinerId []byte, vendorName, vendorModel,
		vendorSwVersion string, vendorStackVersion []byte, provisioningUrl string,
		vendorData []byte) bool
}

// TransportSession is the secure CoAP session to one Border Agent. The
// commissioner core drives it and owns nothing below it: DTLS, CoAP and
// retransmission live behind this interface.
type TransportSession interface {
	// Petition performs the LEAD_PET.req exchange.
	Petition(ctx context.Context, commissionerId string) (PetitionResult, error)

	// SendRequest posts TLVs to a management URI and returns the
	// response TLVs. An empty dstAddr targets the Border Agent itself;
	// otherwise the request is directed at the given mesh address.
	SendRequest(ctx context.Context, uriPath string, payload meshcop.TlvSet, dstAddr string) (meshcop.TlvSet, error)

	// SetEventHandlers registers the unsolicited-message handlers.
	SetEventHandlers(handlers EventHandlers)

	// AbortAll cancels every in-flight exchange without touching the
	// session state. Idempotent.
	AbortAll()

	// Close tears the secure session down.
	Close() error
}

// Dialer opens a TransportSession to a Border Agent.
type Dialer interface {
	Dial(ctx context.Context, addr string, port uint16) (TransportSession, error)
}
