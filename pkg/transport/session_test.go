package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcop/commissioner-go/pkg/coap"
	"github.com/meshcop/commissioner-go/pkg/commissioner"
	"github.com/meshcop/commissioner-go/pkg/dataset"
	"github.com/meshcop/commissioner-go/pkg/meshcop"
	"github.com/meshcop/commissioner-go/pkg/transport"
)

// borderAgentStub answers CoAP requests on the raw end of a pipe.
type borderAgentStub struct {
	t    *testing.T
	conn net.Conn
}

func newSessionPair(t *testing.T) (*transport.Session, *borderAgentStub) {
	t.Helper()
	local, remote := net.Pipe()
	session := transport.NewSession(local, "fd00::ba", nil)
	t.Cleanup(func() { session.Close() })
	return session, &borderAgentStub{t: t, conn: remote}
}

func (b *borderAgentStub) read() *coap.Message {
	b.t.Helper()
	buf := make([]byte, 64*1024)
	require.NoError(b.t, b.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err := b.conn.Read(buf)
	require.NoError(b.t, err)
	msg, err := coap.Decode(buf[:n])
	require.NoError(b.t, err)
	return msg
}

func (b *borderAgentStub) write(msg *coap.Message) {
	b.t.Helper()
	wire, err := msg.Encode()
	require.NoError(b.t, err)
	_, err = b.conn.Write(wire)
	require.NoError(b.t, err)
}

func (b *borderAgentStub) answer(uriPath string, tlvs meshcop.TlvSet) {
	go func() {
		req := b.read()
		assert.Equal(b.t, uriPath, req.UriPath)
		b.write(req.Response(coap.CodeChanged, tlvs.Encode()))
	}()
}

func TestPetition_Accepted(t *testing.T) {
	session, agent := newSessionPair(t)

	agent.answer(meshcop.UriPetition, meshcop.TlvSet{
		meshcop.NewInt8(meshcop.TlvState, meshcop.StateAccept),
		meshcop.NewUint16(meshcop.TlvCommissionerSessionId, 77),
	})

	result, err := session.Petition(context.Background(), "TestComm")
	require.NoError(t, err)
	assert.Equal(t, meshcop.StateAccept, result.State)
	assert.Equal(t, uint16(77), result.SessionId)
	assert.Empty(t, result.ExistingCommissionerId)
}

func TestPetition_RejectedCarriesRival(t *testing.T) {
	session, agent := newSessionPair(t)

	agent.answer(meshcop.UriPetition, meshcop.TlvSet{
		meshcop.NewInt8(meshcop.TlvState, meshcop.StateReject),
		meshcop.NewString(meshcop.TlvCommissionerId, "alpha"),
	})

	result, err := session.Petition(context.Background(), "TestComm")
	require.NoError(t, err)
	assert.Equal(t, meshcop.StateReject, result.State)
	assert.Equal(t, "alpha", result.ExistingCommissionerId)
}

func TestSendRequest_RoundTripsTlvs(t *testing.T) {
	session, agent := newSessionPair(t)

	go func() {
		req := agent.read()
		tlvs, err := meshcop.Decode(req.Payload)
		require.NoError(t, err)
		assert.True(t, tlvs.Contains(meshcop.TlvGet))
		agent.write(req.Response(coap.CodeContent, meshcop.TlvSet{
			meshcop.NewUint16(meshcop.TlvPanId, 0xFACE),
		}.Encode()))
	}()

	payload := meshcop.TlvSet{meshcop.NewBytes(meshcop.TlvGet, []byte{byte(meshcop.TlvPanId)})}
	response, err := session.SendRequest(context.Background(), meshcop.UriActiveGet, payload, "")
	require.NoError(t, err)

	panIdTlv, ok := response.Get(meshcop.TlvPanId)
	require.True(t, ok)
	panId, err := panIdTlv.AsUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFACE), panId)
}

func TestSendRequest_ErrorCodeSurfacesAsTransportFailure(t *testing.T) {
	session, agent := newSessionPair(t)

	go func() {
		req := agent.read()
		agent.write(req.Response(coap.CodeNotFound, nil))
	}()

	_, err := session.SendRequest(context.Background(), meshcop.UriBbrGet, nil, "")
	assert.ErrorIs(t, err, commissioner.ErrTransportFailed)
}

func TestSendRequest_AbortMapsToCancelled(t *testing.T) {
	session, agent := newSessionPair(t)

	go agent.read() // swallow, never answer

	errCh := make(chan error, 1)
	go func() {
		_, err := session.SendRequest(context.Background(), meshcop.UriEnergyScan, nil, "")
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	session.AbortAll()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, commissioner.ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("aborted request did not return")
	}
}

func TestInbound_PanIdConflictEvent(t *testing.T) {
	session, agent := newSessionPair(t)

	type conflict struct {
		peer  string
		mask  uint32
		panId uint16
	}
	got := make(chan conflict, 1)
	session.SetEventHandlers(commissioner.EventHandlers{
		OnPanIdConflict: func(peer string, mask uint32, panId uint16) {
			got <- conflict{peer, mask, panId}
		},
	})

	payload := meshcop.TlvSet{
		meshcop.NewBytes(meshcop.TlvChannelMask, dataset.SingleChannelMask(0x07FFF800).Encode()),
		meshcop.NewUint16(meshcop.TlvPanId, 0xDEAD),
	}
	agent.write(&coap.Message{
		Type:      coap.Confirmable,
		Code:      coap.CodePost,
		MessageID: 9,
		Token:     []byte{1},
		UriPath:   meshcop.UriPanIdConflict,
		Payload:   payload.Encode(),
	})

	select {
	case c := <-got:
		assert.Equal(t, "fd00::ba", c.peer)
		assert.Equal(t, uint32(0x07FFF800), c.mask)
		assert.Equal(t, uint16(0xDEAD), c.panId)
	case <-time.After(2 * time.Second):
		t.Fatal("conflict handler not invoked")
	}

	ack := agent.read()
	assert.Equal(t, coap.CodeChanged, ack.Code)
}

func TestInbound_EnergyReportEvent(t *testing.T) {
	session, agent := newSessionPair(t)

	got := make(chan []byte, 1)
	session.SetEventHandlers(commissioner.EventHandlers{
		OnEnergyReport: func(peer string, mask uint32, energyList []byte) {
			got <- energyList
		},
	})

	payload := meshcop.TlvSet{
		meshcop.NewBytes(meshcop.TlvChannelMask, dataset.SingleChannelMask(0x1800).Encode()),
		meshcop.NewBytes(meshcop.TlvEnergyList, []byte{0x10, 0x20}),
	}
	agent.write(&coap.Message{
		Type:      coap.Confirmable,
		Code:      coap.CodePost,
		MessageID: 10,
		Token:     []byte{2},
		UriPath:   meshcop.UriEnergyReport,
		Payload:   payload.Encode(),
	})

	select {
	case energyList := <-got:
		assert.Equal(t, []byte{0x10, 0x20}, energyList)
	case <-time.After(2 * time.Second):
		t.Fatal("energy report handler not invoked")
	}
	agent.read() // the Changed response
}

func TestInbound_DatasetChangedEvent(t *testing.T) {
	session, agent := newSessionPair(t)

	got := make(chan struct{}, 1)
	session.SetEventHandlers(commissioner.EventHandlers{
		OnDatasetChanged: func() { got <- struct{}{} },
	})

	agent.write(&coap.Message{
		Type:      coap.Confirmable,
		Code:      coap.CodePost,
		MessageID: 11,
		Token:     []byte{3},
		UriPath:   meshcop.UriDatasetChanged,
	})

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("dataset-changed handler not invoked")
	}
	agent.read()
}
