package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/meshcop/commissioner-go/pkg/coap"
	"github.com/meshcop/commissioner-go/pkg/commissioner"
	"github.com/meshcop/commissioner-go/pkg/dataset"
	"github.com/meshcop/commissioner-go/pkg/meshcop"
)

// Session is one DTLS-secured CoAP session to a Border Agent. Every
// request goes to the agent; SendRequest does not carry dstAddr on the
// wire, so a non-empty dstAddr does not select an in-mesh target.
type Session struct {
	id       string
	conn     *coap.Conn
	peerAddr string
	logger   log.Interface

	mu       sync.Mutex
	handlers commissioner.EventHandlers
}

var _ commissioner.TransportSession = (*Session)(nil)

// NewSession wraps an established secure connection. Dial is the usual
// entry point; NewSession lets alternative secure transports reuse the
// CoAP session layer.
func NewSession(conn net.Conn, peerAddr string, logger log.Interface) *Session {
	s := &Session{
		id:       uuid.NewString(),
		peerAddr: peerAddr,
		logger:   logger.WithField("session", peerAddr),
	}
	s.conn = coap.NewConn(conn, s.logger)
	s.registerHandlers()
	return s
}

// Petition performs the LEAD_PET.req exchange.
func (s *Session) Petition(ctx context.Context, commissionerId string) (commissioner.PetitionResult, error) {
	payload := meshcop.TlvSet{meshcop.NewString(meshcop.TlvCommissionerId, commissionerId)}
	response, err := s.SendRequest(ctx, meshcop.UriPetition, payload, "")
	if err != nil {
		return commissioner.PetitionResult{}, err
	}

	stateTlv, ok := response.Get(meshcop.TlvState)
	if !ok {
		return commissioner.PetitionResult{}, fmt.Errorf("%w: petition response carries no State TLV", commissioner.ErrTransportFailed)
	}
	state, err := stateTlv.AsInt8()
	if err != nil {
		return commissioner.PetitionResult{}, fmt.Errorf("%w: %v", commissioner.ErrTransportFailed, err)
	}

	result := commissioner.PetitionResult{State: state}
	if sessionTlv, ok := response.Get(meshcop.TlvCommissionerSessionId); ok {
		if result.SessionId, err = sessionTlv.AsUint16(); err != nil {
			return commissioner.PetitionResult{}, fmt.Errorf("%w: %v", commissioner.ErrTransportFailed, err)
		}
	}
	if idTlv, ok := response.Get(meshcop.TlvCommissionerId); ok {
		result.ExistingCommissionerId = idTlv.AsString()
	}
	return result, nil
}

// SendRequest posts TLVs to a management URI and returns the decoded
// response TLVs.
func (s *Session) SendRequest(ctx context.Context, uriPath string, payload meshcop.TlvSet, dstAddr string) (meshcop.TlvSet, error) {
	_ = dstAddr // routing is the Border Agent's concern; kept for the interface contract

	req := coap.NewRequest(coap.CodePost, uriPath, payload.Encode())
	rsp, err := s.conn.Request(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	if !rsp.Code.IsSuccess() {
		return nil, fmt.Errorf("%w: %s answered %s", commissioner.ErrTransportFailed, uriPath, rsp.Code)
	}

	tlvs, err := meshcop.Decode(rsp.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s response: %v", commissioner.ErrTransportFailed, uriPath, err)
	}
	return tlvs, nil
}

// SetEventHandlers registers the unsolicited-message handlers.
func (s *Session) SetEventHandlers(handlers commissioner.EventHandlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = handlers
}

// AbortAll cancels every in-flight exchange. Idempotent; the session
// stays usable.
func (s *Session) AbortAll() {
	s.conn.AbortAll()
}

// Close tears the CoAP layer and the DTLS connection down.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Id returns the session correlation identifier used in logs.
func (s *Session) Id() string {
	return s.id
}

func (s *Session) currentHandlers() commissioner.EventHandlers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers
}

// registerHandlers wires the unsolicited management notifications onto
// the CoAP dispatcher.
func (s *Session) registerHandlers() {
	s.conn.Handle(meshcop.UriDatasetChanged, func(req *coap.Message) *coap.Message {
		if handler := s.currentHandlers().OnDatasetChanged; handler != nil {
			handler()
		}
		return req.Response(coap.CodeChanged, nil)
	})

	s.conn.Handle(meshcop.UriPanIdConflict, func(req *coap.Message) *coap.Message {
		tlvs, err := meshcop.Decode(req.Payload)
		if err != nil {
			s.logger.WithError(err).Warn("malformed MGMT_PANID_CONFLICT")
			return req.Response(coap.CodeBadRequest, nil)
		}
		mask, panId, err := decodePanIdConflict(tlvs)
		if err != nil {
			s.logger.WithError(err).Warn("malformed MGMT_PANID_CONFLICT")
			return req.Response(coap.CodeBadRequest, nil)
		}
		if handler := s.currentHandlers().OnPanIdConflict; handler != nil {
			handler(s.peerAddr, mask, panId)
		}
		return req.Response(coap.CodeChanged, nil)
	})

	s.conn.Handle(meshcop.UriEnergyReport, func(req *coap.Message) *coap.Message {
		tlvs, err := meshcop.Decode(req.Payload)
		if err != nil {
			s.logger.WithError(err).Warn("malformed MGMT_ED_REPORT")
			return req.Response(coap.CodeBadRequest, nil)
		}
		mask, energyList, err := decodeEnergyReport(tlvs)
		if err != nil {
			s.logger.WithError(err).Warn("malformed MGMT_ED_REPORT")
			return req.Response(coap.CodeBadRequest, nil)
		}
		if handler := s.currentHandlers().OnEnergyReport; handler != nil {
			handler(s.peerAddr, mask, energyList)
		}
		return req.Response(coap.CodeChanged, nil)
	})
}

func decodePanIdConflict(tlvs meshcop.TlvSet) (uint32, uint16, error) {
	maskTlv, ok := tlvs.Get(meshcop.TlvChannelMask)
	if !ok {
		return 0, 0, errors.New("no Channel Mask TLV")
	}
	mask, err := firstPageBitmap(maskTlv.Value)
	if err != nil {
		return 0, 0, err
	}

	panIdTlv, ok := tlvs.Get(meshcop.TlvPanId)
	if !ok {
		return 0, 0, errors.New("no PAN ID TLV")
	}
	panId, err := panIdTlv.AsUint16()
	if err != nil {
		return 0, 0, err
	}
	return mask, panId, nil
}

func decodeEnergyReport(tlvs meshcop.TlvSet) (uint32, []byte, error) {
	maskTlv, ok := tlvs.Get(meshcop.TlvChannelMask)
	if !ok {
		return 0, nil, errors.New("no Channel Mask TLV")
	}
	mask, err := firstPageBitmap(maskTlv.Value)
	if err != nil {
		return 0, nil, err
	}

	energyTlv, ok := tlvs.Get(meshcop.TlvEnergyList)
	if !ok {
		return 0, nil, errors.New("no Energy List TLV")
	}
	return mask, energyTlv.Value, nil
}

// firstPageBitmap extracts the 32-bit bitmap of the first channel mask
// entry.
func firstPageBitmap(value []byte) (uint32, error) {
	mask, err := dataset.DecodeChannelMask(value)
	if err != nil {
		return 0, err
	}
	if len(mask) == 0 || len(mask[0].Masks) != 4 {
		return 0, errors.New("channel mask carries no 32-bit page entry")
	}
	return uint32(mask[0].Masks[0])<<24 | uint32(mask[0].Masks[1])<<16 |
		uint32(mask[0].Masks[2])<<8 | uint32(mask[0].Masks[3]), nil
}

// mapError translates CoAP layer failures into the commissioner error
// taxonomy.
func mapError(err error) error {
	switch {
	case errors.Is(err, coap.ErrTimeout):
		return fmt.Errorf("%w: %v", commissioner.ErrTimeout, err)
	case errors.Is(err, coap.ErrAborted):
		return fmt.Errorf("%w: %v", commissioner.ErrCancelled, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", commissioner.ErrCancelled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", commissioner.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", commissioner.ErrTransportFailed, err)
	}
}
