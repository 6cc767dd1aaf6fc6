package service

import (
	"time"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

var zeroTime time.Time

// logProtocol fills the common fields and hands ev to the protocol logger.
func (s *Session) logProtocol(ev log.Event) {
	if s.config.ProtocolLogger == nil {
		return
	}
	ev.Timestamp = time.Now()
	ev.ConnectionID = s.connID
	ev.LocalRole = log.RoleController
	ev.PeerAddr = s.peer
	s.config.ProtocolLogger.Log(ev)
}

func (s *Session) logCommand(label uint8, cmd *wire.Command, dir log.Direction) {
	if s.config.ProtocolLogger == nil {
		return
	}
	msg := &log.MessageEvent{
		Type:    log.MessageTypeCommand,
		Label:   label,
		Code:    cmd.Code,
		PDU:     cmd.PDU,
		Payload: cmd.Params,
	}
	if p, ok := cmd.Params.(*wire.RegisterNotificationParams); ok {
		id := p.EventID
		msg.EventID = &id
	}
	s.logProtocol(log.Event{
		Direction: dir,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Message:   msg,
	})
}

func (s *Session) logResponse(label uint8, rsp *wire.Response, dir log.Direction, sentAt time.Time) {
	if s.config.ProtocolLogger == nil {
		return
	}
	status := rsp.Status
	msg := &log.MessageEvent{
		Type:       log.MessageTypeResponse,
		Label:      label,
		Code:       rsp.Code,
		PDU:        rsp.PDU,
		Status:     &status,
		PacketType: rsp.PacketType,
		Payload:    rsp.Params,
		RoundTrip:  roundTrip(sentAt),
	}
	if n, ok := rsp.Params.(*wire.NotificationResult); ok {
		id := n.EventID
		msg.EventID = &id
	}
	s.logProtocol(log.Event{
		Direction: dir,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Message:   msg,
	})
}

func (s *Session) logPassThrough(label uint8, code wire.Code, pt wire.PassThrough, dir log.Direction, rt *time.Duration) {
	if s.config.ProtocolLogger == nil {
		return
	}
	typ := log.MessageTypeCommand
	if code.IsResponse() {
		typ = log.MessageTypeResponse
	}
	payload := map[string]string{"op": pt.Op.String(), "state": pt.State.String()}
	if pt.GroupNav != nil {
		payload["group_nav"] = pt.GroupNav.String()
	}
	s.logProtocol(log.Event{
		Direction: dir,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Message: &log.MessageEvent{
			Type:      typ,
			Label:     label,
			Code:      code,
			PDU:       wire.PduNone,
			Payload:   payload,
			RoundTrip: rt,
		},
	})
}

func (s *Session) logTransaction(action log.TransactionAction, label uint8, pdu wire.PduID) {
	if s.config.ProtocolLogger == nil {
		return
	}
	s.logProtocol(log.Event{
		Layer:    log.LayerService,
		Category: log.CategoryTransaction,
		Transaction: &log.TransactionEvent{
			Action: action,
			Label:  label,
			PDU:    pdu,
			InUse:  s.pool.InUse(),
		},
	})
}

func (s *Session) logState(entity log.StateEntity, from, to, reason string) {
	s.logProtocol(log.Event{
		Layer:    log.LayerService,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

func (s *Session) logError(context string, err error) {
	s.logProtocol(log.Event{
		Layer:    log.LayerService,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: err.Error(),
			Context: context,
		},
	})
}
