package service

import (
	"time"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/transaction"
	"github.com/rcctl/avrcp-go/pkg/transport"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

func (s *Session) handleMessage(msg transport.Message) {
	if !s.connected {
		s.debugLog("session: dropping message while disconnected", "peer", msg.Peer, "label", msg.Label)
		return
	}
	if msg.Peer != s.peer {
		s.warnLog("session: dropping message from unknown peer", "peer", msg.Peer)
		return
	}

	if msg.IsCommand() {
		s.handleCommand(msg)
		return
	}

	switch msg.Opcode {
	case wire.OpcodeVendor:
		s.handleVendorResponse(msg)
	case wire.OpcodePassThrough:
		s.handlePassThroughResponse(msg)
	default:
		s.debugLog("session: unknown opcode", "opcode", msg.Opcode)
	}
}

// lookup returns the outstanding request on label. Responses on free labels
// are discarded by the caller without side effects.
func (s *Session) lookup(label uint8) (*request, bool) {
	if _, ok := s.pool.Lookup(label); !ok {
		return nil, false
	}
	req, ok := s.outstanding[label]
	return req, ok
}

func (s *Session) handleVendorResponse(msg transport.Message) {
	req, ok := s.lookup(msg.Label)
	if !ok || req.opcode != wire.OpcodeVendor {
		s.warnLog("session: response on free label", "label", msg.Label, "code", msg.Code.String())
		return
	}
	s.pool.CancelTimer(msg.Label)

	rsp, err := s.codec.DecodeResponse(msg.Code, msg.Data)
	if err != nil {
		s.warnLog("session: malformed response", "label", msg.Label, "pdu", req.pdu.String(), "error", err)
		s.logError("decode response", err)
	}
	if rsp == nil {
		rsp = failedResponse(req)
	}
	if rsp.PDU != req.pdu {
		s.warnLog("session: response pdu mismatch",
			"label", msg.Label,
			"want", req.pdu.String(),
			"got", rsp.PDU.String())
		rsp = failedResponse(req)
	}
	s.logResponse(msg.Label, rsp, log.DirectionIn, req.sentAt)

	if rsp.IsFragment() && !rsp.Status.IsError() {
		var done bool
		rsp, done = s.reassemble(msg.Label, req, rsp)
		if !done {
			return
		}
	}
	s.complete(msg.Label, req, rsp)
}

// complete routes a final (or synthesized) response to its owner.
func (s *Session) complete(label uint8, req *request, rsp *wire.Response) {
	switch {
	case req.pdu == wire.PduRegisterNotification && req.event == wire.EventVolumeChanged:
		s.handleVolumeNotification(label, rsp)

	case req.pdu == wire.PduRegisterNotification:
		s.handleNotification(label, req, rsp)

	case req.pdu == wire.PduSetAbsoluteVolume:
		s.release(label)
		s.handleSetVolumeResponse(rsp)

	case req.pdu == wire.PduGetPlayStatus:
		s.release(label)
		s.handlePlayStatusResponse(rsp)

	case req.pdu == wire.PduSetAppValue:
		s.release(label)
		err := statusError(rsp)
		s.post(func(cb Callbacks, peer string) {
			cb.SetPlayerAppSettingResult(peer, err)
		})

	default:
		s.release(label)
		if err := s.proc.HandleResponse(rsp); err != nil {
			s.warnLog("session: procedure response", "pdu", rsp.PDU.String(), "error", err)
		}
	}
}

// reassemble collects fragments. It returns the reassembled response and
// true once the END packet arrived or the sequence failed.
func (s *Session) reassemble(label uint8, req *request, rsp *wire.Response) (*wire.Response, bool) {
	switch rsp.PacketType {
	case wire.PacketStart:
		req.fragments = append(req.fragments[:0], rsp.Fragment...)
		req.assembling = true

	case wire.PacketContinue:
		if !req.assembling {
			s.warnLog("session: continue packet without start", "label", label)
			return failedResponse(req), true
		}
		req.fragments = append(req.fragments, rsp.Fragment...)

	case wire.PacketEnd:
		if !req.assembling {
			s.warnLog("session: end packet without start", "label", label)
			return failedResponse(req), true
		}
		params := append(req.fragments, rsp.Fragment...)
		req.fragments = nil
		req.assembling = false

		out := &wire.Response{Code: rsp.Code, PDU: rsp.PDU, Status: wire.StatusNoError}
		p, err := s.codec.DecodeResponseParams(rsp.PDU, params)
		if err != nil {
			s.warnLog("session: malformed reassembled response", "pdu", rsp.PDU.String(), "error", err)
			out.Status = wire.StatusInternalError
			return out, true
		}
		out.Params = p
		return out, true
	}

	if err := s.requestContinuation(label, req); err != nil {
		s.warnLog("session: continuation failed", "label", label, "error", err)
		req.fragments = nil
		req.assembling = false
		return failedResponse(req), true
	}
	return nil, false
}

// requestContinuation asks for the next packet on the same label.
func (s *Session) requestContinuation(label uint8, req *request) error {
	cmd := wire.NewRequestContinuation(req.pdu)
	if err := s.resend(label, cmd); err != nil {
		return err
	}
	return s.pool.ArmTimer(label, req.pdu, s.config.ControlTimeout)
}

// abortContinuation tells the target to drop the rest of a fragmented
// response. No answer is awaited.
func (s *Session) abortContinuation(label uint8, req *request) {
	if err := s.resend(label, wire.NewAbortContinuation(req.pdu)); err != nil {
		s.debugLog("session: abort continuation failed", "label", label, "error", err)
	}
	req.fragments = nil
	req.assembling = false
}

// resend sends cmd on a label that is already held.
func (s *Session) resend(label uint8, cmd *wire.Command) error {
	data, err := s.codec.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	if err := s.transport.Send(s.peer, label, wire.OpcodeVendor, cmd.Code, data); err != nil {
		return err
	}
	s.logCommand(label, cmd, log.DirectionOut)
	return nil
}

func (s *Session) handleTimeout(t transaction.Timeout) {
	if !s.pool.Expire(t) {
		s.debugLog("session: stale timeout", "label", t.Label, "pdu", t.PDU.String())
		return
	}
	s.logTransaction(log.TransactionTimeout, t.Label, t.PDU)

	req, ok := s.outstanding[t.Label]
	if !ok {
		s.release(t.Label)
		return
	}
	s.debugLog("session: transaction timed out", "label", t.Label, "pdu", req.pdu.String())

	if req.opcode == wire.OpcodePassThrough {
		s.release(t.Label)
		s.reportPassThrough(req, &StatusError{PDU: wire.PduNone, Status: wire.StatusTimeout})
		return
	}
	if req.assembling {
		s.abortContinuation(t.Label, req)
	}
	s.complete(t.Label, req, &wire.Response{PDU: req.pdu, Status: wire.StatusTimeout})
}

func failedResponse(req *request) *wire.Response {
	return &wire.Response{Code: wire.CodeRejected, PDU: req.pdu, Status: wire.StatusInternalError}
}

// roundTrip returns the time since sentAt, or nil if unknown.
func roundTrip(sentAt time.Time) *time.Duration {
	if sentAt.IsZero() {
		return nil
	}
	d := time.Since(sentAt)
	return &d
}
