package service

import (
	"errors"
	"fmt"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/transport"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// pendingKind is a peer command waiting for the host to answer it.
type pendingKind uint8

const (
	pendingSetVolume pendingKind = iota
	pendingVolumeNotify
)

// SetVolumeResponse answers a SET_ABSOLUTE_VOLUME received with label.
func (s *Session) SetVolumeResponse(volume uint8, label uint8) error {
	return s.exec.do(func() error {
		if err := s.checkConnected(); err != nil {
			return err
		}
		if err := s.pendingResponse(pendingSetVolume, label); err != nil {
			return err
		}
		delete(s.inbound, pendingSetVolume)
		return s.sendResponse(label, &wire.Response{
			Code:   wire.CodeAccepted,
			PDU:    wire.PduSetAbsoluteVolume,
			Status: wire.StatusNoError,
			Params: &wire.AbsoluteVolume{Volume: volume & wire.VolumeMask},
		})
	})
}

// VolumeChangeNotificationResponse answers a
// REGISTER_NOTIFICATION(VOLUME_CHANGED) received with label. code is
// INTERIM, CHANGED or REJECTED; the registration is consumed by CHANGED and
// REJECTED.
func (s *Session) VolumeChangeNotificationResponse(code wire.Code, volume uint8, label uint8) error {
	return s.exec.do(func() error {
		if err := s.checkConnected(); err != nil {
			return err
		}
		if err := s.pendingResponse(pendingVolumeNotify, label); err != nil {
			return err
		}

		rsp := &wire.Response{Code: code, PDU: wire.PduRegisterNotification, Status: wire.StatusNoError}
		switch code {
		case wire.CodeInterim, wire.CodeChanged:
			rsp.Params = &wire.NotificationResult{
				EventID: wire.EventVolumeChanged,
				Volume:  volume & wire.VolumeMask,
			}
		case wire.CodeRejected:
			rsp.Status = wire.StatusInternalError
		default:
			return fmt.Errorf("%w: %s", ErrInvalidCode, code)
		}
		if code != wire.CodeInterim {
			delete(s.inbound, pendingVolumeNotify)
		}
		return s.sendResponse(label, rsp)
	})
}

// pendingResponse checks that a peer command of kind is waiting on label.
func (s *Session) pendingResponse(kind pendingKind, label uint8) error {
	l, ok := s.inbound[kind]
	if !ok || l != label {
		return fmt.Errorf("%w: label %d", ErrNoPendingResponse, label)
	}
	return nil
}

func (s *Session) handleCommand(msg transport.Message) {
	if msg.Opcode == wire.OpcodePassThrough {
		// Panel keys from the peer are not ours to act on.
		s.sendRaw(msg.Label, wire.OpcodePassThrough, wire.CodeNotImplemented, msg.Data)
		return
	}

	cmd, err := s.codec.DecodeCommand(msg.Code, msg.Data)
	if err != nil {
		status, pdu := wire.StatusInternalError, wire.PduNone
		var derr *wire.DecodeError
		if errors.As(err, &derr) {
			status, pdu = derr.Status, derr.PDU
		}
		s.debugLog("session: rejecting malformed command", "label", msg.Label, "error", err)
		s.reject(msg.Label, pdu, status)
		return
	}
	s.logCommand(msg.Label, cmd, log.DirectionIn)

	switch p := cmd.Params.(type) {
	case *wire.AbsoluteVolume:
		s.inbound[pendingSetVolume] = msg.Label
		label, volume := msg.Label, p.Volume
		s.post(func(cb Callbacks, peer string) {
			cb.SetAbsoluteVolumeCommand(peer, volume, label)
		})

	case *wire.RegisterNotificationParams:
		if p.EventID != wire.EventVolumeChanged {
			s.reject(msg.Label, cmd.PDU, wire.StatusInvalidCommand)
			return
		}
		s.inbound[pendingVolumeNotify] = msg.Label
		label := msg.Label
		s.post(func(cb Callbacks, peer string) {
			cb.VolumeNotificationRegistered(peer, label)
		})

	default:
		s.reject(msg.Label, cmd.PDU, wire.StatusInvalidCommand)
	}
}

func (s *Session) reject(label uint8, pdu wire.PduID, status wire.Status) {
	rsp := &wire.Response{Code: wire.CodeRejected, PDU: pdu, Status: status}
	if err := s.sendResponse(label, rsp); err != nil {
		s.warnLog("session: reject failed", "label", label, "error", err)
	}
}

func (s *Session) sendResponse(label uint8, rsp *wire.Response) error {
	data, err := s.codec.EncodeResponse(rsp)
	if err != nil {
		return fmt.Errorf("encode %s response: %w", rsp.PDU, err)
	}
	if err := s.sendRaw(label, wire.OpcodeVendor, rsp.Code, data); err != nil {
		return err
	}
	s.logResponse(label, rsp, log.DirectionOut, zeroTime)
	return nil
}

func (s *Session) sendRaw(label uint8, op wire.Opcode, code wire.Code, data []byte) error {
	if err := s.transport.Send(s.peer, label, op, code, data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
