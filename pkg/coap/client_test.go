package coap_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcop/commissioner-go/pkg/coap"
)

// readMessage reads one message from the raw side of a pipe.
func readMessage(t *testing.T, conn net.Conn) *coap.Message {
	t.Helper()
	buf := make([]byte, 64*1024)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	msg, err := coap.Decode(buf[:n])
	require.NoError(t, err)
	return msg
}

func writeMessage(t *testing.T, conn net.Conn, msg *coap.Message) {
	t.Helper()
	wire, err := msg.Encode()
	require.NoError(t, err)
	_, err = conn.Write(wire)
	require.NoError(t, err)
}

func TestRequest_PiggybackedResponse(t *testing.T) {
	local, remote := net.Pipe()
	conn := coap.NewConn(local, nil)
	defer conn.Close()

	go func() {
		req := readMessage(t, remote)
		writeMessage(t, remote, req.Response(coap.CodeChanged, []byte{0x10, 0x01, 0x01}))
	}()

	rsp, err := conn.Request(context.Background(), coap.NewRequest(coap.CodePost, "/c/cs", []byte{1}))
	require.NoError(t, err)
	assert.Equal(t, coap.CodeChanged, rsp.Code)
	assert.Equal(t, []byte{0x10, 0x01, 0x01}, rsp.Payload)
}

func TestRequest_SeparateResponseAfterBareAck(t *testing.T) {
	local, remote := net.Pipe()
	conn := coap.NewConn(local, nil)
	defer conn.Close()

	go func() {
		req := readMessage(t, remote)
		// Bare ACK first, then the response in a new confirmable
		// message carrying the same token.
		writeMessage(t, remote, &coap.Message{
			Type:      coap.Acknowledgement,
			Code:      coap.CodeEmpty,
			MessageID: req.MessageID,
		})
		writeMessage(t, remote, &coap.Message{
			Type:      coap.Confirmable,
			Code:      coap.CodeContent,
			MessageID: 999,
			Token:     req.Token,
			Payload:   []byte{0x42},
		})
		// The client acknowledges the separate response.
		ack := readMessage(t, remote)
		assert.Equal(t, coap.Acknowledgement, ack.Type)
		assert.Equal(t, uint16(999), ack.MessageID)
	}()

	rsp, err := conn.Request(context.Background(), coap.NewRequest(coap.CodeGet, "/c/ag", nil))
	require.NoError(t, err)
	assert.Equal(t, coap.CodeContent, rsp.Code)
	assert.Equal(t, []byte{0x42}, rsp.Payload)
}

func TestRequest_AbortAll(t *testing.T) {
	local, remote := net.Pipe()
	conn := coap.NewConn(local, nil)
	defer conn.Close()

	go readMessage(t, remote) // swallow the request, never answer

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Request(context.Background(), coap.NewRequest(coap.CodePost, "/c/es", nil))
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	conn.AbortAll()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, coap.ErrAborted)
	case <-time.After(2 * time.Second):
		t.Fatal("aborted request did not return")
	}
}

func TestRequest_ContextCancel(t *testing.T) {
	local, remote := net.Pipe()
	conn := coap.NewConn(local, nil)
	defer conn.Close()

	go readMessage(t, remote)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Request(ctx, coap.NewRequest(coap.CodePost, "/c/pq", nil))
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled request did not return")
	}
}

func TestInboundRequest_DispatchedToHandler(t *testing.T) {
	local, remote := net.Pipe()
	conn := coap.NewConn(local, nil)
	defer conn.Close()

	got := make(chan *coap.Message, 1)
	conn.Handle("/c/pc", func(req *coap.Message) *coap.Message {
		got <- req
		return req.Response(coap.CodeChanged, nil)
	})

	writeMessage(t, remote, &coap.Message{
		Type:      coap.Confirmable,
		Code:      coap.CodePost,
		MessageID: 5,
		Token:     []byte{7},
		UriPath:   "/c/pc",
		Payload:   []byte{0xAB},
	})

	select {
	case req := <-got:
		assert.Equal(t, []byte{0xAB}, req.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not invoked")
	}

	rsp := readMessage(t, remote)
	assert.Equal(t, coap.CodeChanged, rsp.Code)
	assert.Equal(t, uint16(5), rsp.MessageID)
}

func TestInboundRequest_UnknownPathGetsNotFound(t *testing.T) {
	local, remote := net.Pipe()
	conn := coap.NewConn(local, nil)
	defer conn.Close()

	writeMessage(t, remote, &coap.Message{
		Type:      coap.Confirmable,
		Code:      coap.CodePost,
		MessageID: 6,
		UriPath:   "/nope",
	})

	rsp := readMessage(t, remote)
	assert.Equal(t, coap.CodeNotFound, rsp.Code)
}
