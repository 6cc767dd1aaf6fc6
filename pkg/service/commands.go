package service

import (
	"fmt"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/transport"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// SendPassThrough sends a panel key event. The result is reported through
// Callbacks.PassThroughResponse.
func (s *Session) SendPassThrough(op wire.PassThroughOp, state wire.KeyState) error {
	return s.exec.do(func() error {
		return s.sendPassThrough(wire.PassThrough{Op: op, State: state})
	})
}

// SendGroupNavigation sends a vendor-unique group navigation key. The
// result is reported through Callbacks.GroupNavigationResponse.
func (s *Session) SendGroupNavigation(op wire.GroupNavOp, state wire.KeyState) error {
	return s.exec.do(func() error {
		nav := op
		return s.sendPassThrough(wire.PassThrough{Op: wire.OpVendorUnique, State: state, GroupNav: &nav})
	})
}

// ChangePlayerAppSetting sets player application setting values. The
// result is reported through Callbacks.SetPlayerAppSettingResult.
func (s *Session) ChangePlayerAppSetting(values []wire.AttrValue) error {
	return s.exec.do(func() error {
		if err := s.checkConnected(); err != nil {
			return err
		}
		if len(values) == 0 {
			return fmt.Errorf("%w: empty setting list", wire.ErrEncodeFailure)
		}
		_, err := s.sendCommand(wire.NewSetAppValue(values))
		return err
	})
}

// GetPlayStatus requests the play position. The result is reported
// through Callbacks.PlayPositionChanged.
func (s *Session) GetPlayStatus() error {
	return s.exec.do(func() error {
		_, err := s.sendCommand(wire.NewGetPlayStatus())
		return err
	})
}

func (s *Session) sendPassThrough(pt wire.PassThrough) error {
	req := &request{
		pdu:    wire.PduNone,
		code:   wire.CodeControl,
		opcode: wire.OpcodePassThrough,
		pass:   &pt,
	}
	label, err := s.startTransaction(req, wire.EncodePassThrough(pt))
	if err != nil {
		return err
	}
	s.logPassThrough(label, wire.CodeControl, pt, log.DirectionOut, nil)
	return nil
}

func (s *Session) handlePassThroughResponse(msg transport.Message) {
	req, ok := s.lookup(msg.Label)
	if !ok || req.opcode != wire.OpcodePassThrough {
		s.warnLog("session: pass-through response on free label", "label", msg.Label)
		return
	}
	s.release(msg.Label)

	pt := *req.pass
	if decoded, err := wire.DecodePassThrough(msg.Data); err == nil {
		pt.State = decoded.State
	}
	s.logPassThrough(msg.Label, msg.Code, pt, log.DirectionIn, roundTrip(req.sentAt))

	var err error
	if msg.Code != wire.CodeAccepted {
		err = &StatusError{
			PDU:     wire.PduNone,
			Status:  wire.StatusInternalError,
			Message: fmt.Sprintf("pass-through %s: %s", pt.Op, msg.Code),
		}
	}
	s.reportPassThrough(&request{pass: &pt}, err)
}

func (s *Session) reportPassThrough(req *request, err error) {
	pt := *req.pass
	if pt.GroupNav != nil {
		nav := *pt.GroupNav
		s.post(func(cb Callbacks, peer string) {
			cb.GroupNavigationResponse(peer, nav, pt.State, err)
		})
		return
	}
	s.post(func(cb Callbacks, peer string) {
		cb.PassThroughResponse(peer, pt.Op, pt.State, err)
	})
}
