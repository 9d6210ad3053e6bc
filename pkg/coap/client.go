package coap

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/apex/log"
)

// Exchange errors.
var (
	ErrTimeout = errors.New("retransmission budget exhausted")
	ErrAborted = errors.New("exchange aborted")
	ErrClosed  = errors.New("connection closed")
)

// Retransmission parameters of RFC 7252 §4.8.
const (
	AckTimeout    = 2 * time.Second
	MaxRetransmit = 4
)

// Handler processes an inbound request and returns the response to
// send, or nil when only a bare acknowledgement is due.
type Handler func(req *Message) *Message

// Conn drives CoAP exchanges over a single connected transport (a DTLS
// session in practice). One read loop demultiplexes responses to their
// waiting exchanges and dispatches inbound requests to registered
// handlers.
type Conn struct {
	conn   net.Conn
	logger log.Interface

	mu        sync.Mutex
	pending   map[string]*exchange
	handlers  map[string]Handler
	messageID uint16
	token     uint64

	closeOnce sync.Once
	closed    chan struct{}
}

type exchange struct {
	response chan *Message
	aborted  chan struct{}
}

// NewConn wraps a connected transport and starts the read loop.
func NewConn(conn net.Conn, logger log.Interface) *Conn {
	if logger == nil {
		logger = log.Log
	}
	c := &Conn{
		conn:     conn,
		logger:   logger,
		pending:  make(map[string]*exchange),
		handlers: make(map[string]Handler),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Handle registers a handler for inbound requests on the given URI
// path. Handlers run on the read loop and must not block.
func (c *Conn) Handle(uriPath string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[uriPath] = h
}

// Request performs a confirmable exchange: the request is transmitted
// with the RFC 7252 retransmission schedule until a response with the
// matching token arrives, the budget is exhausted, the context is
// cancelled, or AbortAll is invoked.
func (c *Conn) Request(ctx context.Context, req *Message) (*Message, error) {
	ex := &exchange{
		response: make(chan *Message, 1),
		aborted:  make(chan struct{}),
	}

	c.mu.Lock()
	c.messageID++
	c.token++
	req.MessageID = c.messageID
	req.Token = make([]byte, 8)
	binary.BigEndian.PutUint64(req.Token, c.token)
	key := hex.EncodeToString(req.Token)
	c.pending[key] = ex
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}()

	wire, err := req.Encode()
	if err != nil {
		return nil, err
	}

	timeout := AckTimeout
	for attempt := 0; ; attempt++ {
		if _, err := c.conn.Write(wire); err != nil {
			return nil, fmt.Errorf("writing %s %s: %w", req.Code, req.UriPath, err)
		}

		timer := time.NewTimer(timeout)
		select {
		case rsp := <-ex.response:
			timer.Stop()
			return rsp, nil
		case <-ex.aborted:
			timer.Stop()
			return nil, ErrAborted
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-c.closed:
			timer.Stop()
			return nil, ErrClosed
		case <-timer.C:
			if attempt+1 > MaxRetransmit {
				return nil, fmt.Errorf("%w: %s %s", ErrTimeout, req.Code, req.UriPath)
			}
			timeout *= 2
		}
	}
}

// AbortAll cancels every in-flight exchange. Each waiting Request
// returns ErrAborted exactly once; the connection stays usable.
func (c *Conn) AbortAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, ex := range c.pending {
		close(ex.aborted)
		delete(c.pending, key)
	}
}

// Close shuts the underlying transport down and fails all waiters.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.WithError(err).Debug("coap read loop terminated")
			}
			c.Close()
			return
		}

		msg, err := Decode(buf[:n])
		if err != nil {
			c.logger.WithError(err).Warn("dropping malformed coap message")
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg *Message) {
	if msg.Code.IsRequest() {
		c.dispatchRequest(msg)
		return
	}

	// A bare ACK only confirms receipt; the separate response will
	// reuse the token.
	if msg.Code == CodeEmpty {
		return
	}

	c.mu.Lock()
	ex, ok := c.pending[hex.EncodeToString(msg.Token)]
	if ok {
		delete(c.pending, hex.EncodeToString(msg.Token))
	}
	c.mu.Unlock()

	if !ok {
		c.logger.WithField("code", msg.Code.String()).Debug("response with unknown token")
		return
	}

	// Confirmable separate responses want their own acknowledgement.
	if msg.Type == Confirmable {
		c.writeAck(msg.MessageID)
	}
	ex.response <- msg
}

func (c *Conn) dispatchRequest(msg *Message) {
	c.mu.Lock()
	handler := c.handlers[msg.UriPath]
	c.mu.Unlock()

	if handler == nil {
		c.logger.WithField("uri", msg.UriPath).Debug("no handler for inbound request")
		if msg.Type == Confirmable {
			c.write(msg.Response(CodeNotFound, nil))
		}
		return
	}

	rsp := handler(msg)
	if rsp == nil {
		if msg.Type == Confirmable {
			c.writeAck(msg.MessageID)
		}
		return
	}
	c.write(rsp)
}

func (c *Conn) writeAck(messageID uint16) {
	c.write(&Message{Type: Acknowledgement, Code: CodeEmpty, MessageID: messageID})
}

func (c *Conn) write(msg *Message) {
	wire, err := msg.Encode()
	if err != nil {
		c.logger.WithError(err).Warn("encoding coap message")
		return
	}
	if _, err := c.conn.Write(wire); err != nil {
		c.logger.WithError(err).Debug("writing coap message")
	}
}
