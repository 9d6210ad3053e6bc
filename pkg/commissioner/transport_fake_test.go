package commissioner_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/meshcop/commissioner-go/pkg/commissioner"
	"github.com/meshcop/commissioner-go/pkg/dataset"
	"github.com/meshcop/commissioner-go/pkg/meshcop"
)

// recordedRequest captures one SendRequest call.
type recordedRequest struct {
	UriPath string
	Payload meshcop.TlvSet
	DstAddr string
}

// fakeTransport is a programmable TransportSession for engine tests.
type fakeTransport struct {
	mu       sync.Mutex
	handlers commissioner.EventHandlers
	petition commissioner.PetitionResult
	petitionErr error

	// responses maps a URI path to its canned responder. URIs without
	// an entry answer with a bare accepting State TLV.
	responses map[string]func(payload meshcop.TlvSet, dstAddr string) (meshcop.TlvSet, error)

	// blocking URIs park SendRequest until AbortAll.
	blocking map[string]bool
	abort    chan struct{}

	requests []recordedRequest
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		petition:  commissioner.PetitionResult{State: meshcop.StateAccept, SessionId: 42},
		responses: make(map[string]func(meshcop.TlvSet, string) (meshcop.TlvSet, error)),
		blocking:  make(map[string]bool),
		abort:     make(chan struct{}),
	}
}

func acceptResponse() meshcop.TlvSet {
	return meshcop.TlvSet{meshcop.NewInt8(meshcop.TlvState, meshcop.StateAccept)}
}

func rejectResponse() meshcop.TlvSet {
	return meshcop.TlvSet{meshcop.NewInt8(meshcop.TlvState, meshcop.StateReject)}
}

func (f *fakeTransport) Petition(ctx context.Context, commissionerId string) (commissioner.PetitionResult, error) {
	return f.petition, f.petitionErr
}

func (f *fakeTransport) SendRequest(ctx context.Context, uriPath string, payload meshcop.TlvSet, dstAddr string) (meshcop.TlvSet, error) {
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{UriPath: uriPath, Payload: payload, DstAddr: dstAddr})
	responder := f.responses[uriPath]
	blocking := f.blocking[uriPath]
	abort := f.abort
	f.mu.Unlock()

	if blocking {
		select {
		case <-abort:
			return nil, fmt.Errorf("%w: exchange aborted", commissioner.ErrCancelled)
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", commissioner.ErrTimeout, ctx.Err())
		}
	}

	if responder != nil {
		return responder(payload, dstAddr)
	}
	return acceptResponse(), nil
}

func (f *fakeTransport) SetEventHandlers(handlers commissioner.EventHandlers) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = handlers
}

func (f *fakeTransport) AbortAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.abort:
	default:
		close(f.abort)
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) respond(uriPath string, response meshcop.TlvSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[uriPath] = func(meshcop.TlvSet, string) (meshcop.TlvSet, error) {
		return response, nil
	}
}

func (f *fakeTransport) respondErr(uriPath string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[uriPath] = func(meshcop.TlvSet, string) (meshcop.TlvSet, error) {
		return nil, err
	}
}

func (f *fakeTransport) block(uriPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocking[uriPath] = true
}

func (f *fakeTransport) requestsTo(uriPath string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, req := range f.requests {
		if req.UriPath == uriPath {
			out = append(out, req)
		}
	}
	return out
}

func (f *fakeTransport) eventHandlers() commissioner.EventHandlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers
}

// fakeDialer hands out a fixed transport.
type fakeDialer struct {
	transport *fakeTransport
	err       error
}

func (d *fakeDialer) Dial(ctx context.Context, addr string, port uint16) (commissioner.TransportSession, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.transport, nil
}

// testConfig is a minimal valid non-CCM configuration.
func testConfig() commissioner.Config {
	return commissioner.Config{
		Id:                "TestComm",
		PSKc:              "00112233445566778899aabbccddeeff",
		KeepAliveInterval: 40,
		LogLevel:          "off",
	}
}

// newActiveCommissioner petitions through the fake transport and
// returns an Active engine.
func newActiveCommissioner(t *testing.T, transport *fakeTransport) *commissioner.Commissioner {
	t.Helper()

	comm, err := commissioner.New(testConfig(), &fakeDialer{transport: transport}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := comm.Start(context.Background(), "fd00::1", 49191); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(comm.Stop)
	return comm
}

// steeringOf extracts the MeshCoP Steering Data TLV of the most recent
// MGMT_COMMISSIONER_SET request.
func steeringOf(t *testing.T, transport *fakeTransport) []byte {
	t.Helper()
	sets := transport.requestsTo(meshcop.UriCommissionerSet)
	if len(sets) == 0 {
		t.Fatal("no MGMT_COMMISSIONER_SET request recorded")
	}
	tlv, ok := sets[len(sets)-1].Payload.Get(meshcop.TlvSteeringData)
	if !ok {
		t.Fatal("MGMT_COMMISSIONER_SET carries no steering data")
	}
	return tlv.Value
}

// commissionerGetResponse builds a MGMT_COMMISSIONER_GET.rsp.
func commissionerGetResponse(ds dataset.CommissionerDataset) meshcop.TlvSet {
	return append(acceptResponse(), ds.ToTlvs()...)
}
