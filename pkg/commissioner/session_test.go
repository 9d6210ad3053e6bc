package commissioner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcop/commissioner-go/pkg/commissioner"
	"github.com/meshcop/commissioner-go/pkg/meshcop"
)

func TestStart_PetitionAccepted(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	assert.True(t, comm.IsActive())
	assert.Equal(t, commissioner.StateActive, comm.State())

	sessionId, err := comm.SessionId()
	require.NoError(t, err)
	assert.Equal(t, uint16(42), sessionId)
}

func TestStart_PetitionRejectedReportsRival(t *testing.T) {
	transport := newFakeTransport()
	transport.petition = commissioner.PetitionResult{
		State:                  meshcop.StateReject,
		ExistingCommissionerId: "alpha",
	}

	comm, err := commissioner.New(testConfig(), &fakeDialer{transport: transport}, nil)
	require.NoError(t, err)

	existing, err := comm.Start(context.Background(), "fd00::1", 49191)
	assert.ErrorIs(t, err, commissioner.ErrRejected)
	// The rival arrives through the output value, not the error text.
	assert.Equal(t, "alpha", existing)
	assert.Equal(t, commissioner.StateDisabled, comm.State())
	assert.False(t, comm.IsActive())
}

func TestStart_SecondPetitionWhileActive(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	_, err := comm.Start(context.Background(), "fd00::2", 49191)
	assert.ErrorIs(t, err, commissioner.ErrInvalidState)
	assert.True(t, comm.IsActive())
}

func TestStart_DialFailure(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	comm, err := commissioner.New(testConfig(), dialer, nil)
	require.NoError(t, err)

	_, err = comm.Start(context.Background(), "fd00::1", 49191)
	require.Error(t, err)
	assert.Equal(t, commissioner.StateDisabled, comm.State())
}

func TestSessionId_UndefinedUnlessActive(t *testing.T) {
	comm, err := commissioner.New(testConfig(), &fakeDialer{transport: newFakeTransport()}, nil)
	require.NoError(t, err)

	_, err = comm.SessionId()
	assert.ErrorIs(t, err, commissioner.ErrInvalidState)
}

func TestStop_SendsResigningKeepAlive(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	comm.Stop()

	assert.Equal(t, commissioner.StateDisabled, comm.State())
	kas := transport.requestsTo(meshcop.UriKeepAlive)
	require.NotEmpty(t, kas)

	last := kas[len(kas)-1]
	stateTlv, ok := last.Payload.Get(meshcop.TlvState)
	require.True(t, ok)
	state, err := stateTlv.AsInt8()
	require.NoError(t, err)
	assert.Equal(t, meshcop.StateReject, state)

	sessionTlv, ok := last.Payload.Get(meshcop.TlvCommissionerSessionId)
	require.True(t, ok)
	sessionId, err := sessionTlv.AsUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(42), sessionId)
}

func TestStop_Idempotent(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	comm.Stop()
	comm.Stop()
	assert.Equal(t, commissioner.StateDisabled, comm.State())
}

func TestKeepAlive_RejectionLosesSession(t *testing.T) {
	transport := newFakeTransport()
	transport.respond(meshcop.UriKeepAlive, rejectResponse())

	cfg := testConfig()
	cfg.KeepAliveInterval = 1

	comm, err := commissioner.New(cfg, &fakeDialer{transport: transport}, nil)
	require.NoError(t, err)

	lost := make(chan error, 1)
	comm.OnSessionLost(func(err error) { lost <- err })

	_, err = comm.Start(context.Background(), "fd00::1", 49191)
	require.NoError(t, err)

	select {
	case err := <-lost:
		assert.ErrorIs(t, err, commissioner.ErrRejected)
	case <-time.After(5 * time.Second):
		t.Fatal("session-lost handler not invoked")
	}
	assert.Equal(t, commissioner.StateDisabled, comm.State())
}

func TestAbortRequests_KeepsSessionState(t *testing.T) {
	transport := newFakeTransport()
	comm := newActiveCommissioner(t, transport)

	comm.AbortRequests()
	comm.AbortRequests() // idempotent

	assert.True(t, comm.IsActive())
}
