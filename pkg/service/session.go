package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/notification"
	"github.com/rcctl/avrcp-go/pkg/procedure"
	"github.com/rcctl/avrcp-go/pkg/properties"
	"github.com/rcctl/avrcp-go/pkg/transaction"
	"github.com/rcctl/avrcp-go/pkg/transport"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// request is the session's record of an outstanding transaction.
type request struct {
	pdu    wire.PduID
	code   wire.Code
	opcode wire.Opcode
	sentAt time.Time

	// event is set for REGISTER_NOTIFICATION.
	event wire.EventID

	// pass is set for pass-through commands.
	pass *wire.PassThrough

	// fragments collects START/CONTINUE parameter bytes. assembling is set
	// from START until END, since a START may carry no bytes.
	fragments  []byte
	assembling bool
}

type volumeState uint8

const (
	volumeIdle volumeState = iota
	volumeRegistering
	volumeSubscribed
	volumeRejected
)

func (v volumeState) String() string {
	switch v {
	case volumeIdle:
		return "IDLE"
	case volumeRegistering:
		return "REGISTERING"
	case volumeSubscribed:
		return "SUBSCRIBED"
	case volumeRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Session is an AVRCP controller session for one peer at a time.
type Session struct {
	config    SessionConfig
	transport transport.Transport
	codec     wire.Codec
	callbacks Callbacks
	logger    *slog.Logger

	exec   *executor
	notify *notifier

	pool     *transaction.Pool
	registry *notification.Registry
	proc     *procedure.Orchestrator

	// Everything below is owned by the executor goroutine.
	connected         bool
	peer              string
	connID            string
	features          wire.Features
	featuresProcessed bool
	outstanding       map[uint8]*request

	volume   uint8
	volLabel uint8
	volState volumeState

	trackUID   uint64
	playStatus wire.PlayStatus
	pollTimer  *time.Timer
	pollGen    uint64

	// inbound holds labels of peer commands awaiting a host answer.
	inbound map[pendingKind]uint8
}

// NewSession creates a session sending through tr. Call Start before use.
func NewSession(tr transport.Transport, callbacks Callbacks, config SessionConfig) *Session {
	config = config.withDefaults()
	if callbacks == nil {
		callbacks = NopCallbacks{}
	}

	s := &Session{
		config:      config,
		transport:   tr,
		codec:       config.Codec,
		callbacks:   callbacks,
		logger:      config.Logger,
		exec:        newExecutor(config.TaskQueueSize),
		notify:      newNotifier(),
		outstanding: make(map[uint8]*request),
		inbound:     make(map[pendingKind]uint8),
		volume:      wire.MaxVolume,
		volLabel:    transaction.NoLabel,
		trackUID:    wire.InvalidTrackUID,
	}

	s.pool = transaction.NewPool(s.onTimeout)

	regConfig := notification.DefaultConfig()
	if len(config.TrackedEvents) > 0 {
		regConfig.Tracked = config.TrackedEvents
	}
	s.registry = notification.NewRegistryWithConfig(notification.RegistrarFunc(s.registerEvent), regConfig)

	s.proc = procedure.New(sessionSender{s}, sessionReporter{s}, s.registry, procedure.Config{
		ElementAttributes: config.ElementAttributes,
		MaxElementRetries: config.MaxElementRetries,
		Logger:            config.Logger,
	})
	return s
}

// Start launches the executor and notifier goroutines. The session stops
// when ctx is cancelled.
func (s *Session) Start(ctx context.Context) error {
	if err := s.exec.start(); err != nil {
		return err
	}
	s.notify.start()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.exec.done:
		}
	}()
	return nil
}

// Stop disconnects any peer, delivers pending callbacks and stops the
// session. It returns ErrNotStarted if the session was never started or is
// already stopped. It must not be called from a callback.
func (s *Session) Stop() error {
	err := s.exec.do(func() error {
		s.disconnect("session stopped")
		return nil
	})
	s.exec.stop()
	s.notify.stop()
	return err
}

// OnConnect reports a new connection. features may be zero when the SDP
// record is not known yet; OnFeatures supplies it later.
func (s *Session) OnConnect(peer string, features wire.Features) error {
	return s.exec.do(func() error {
		if s.connected {
			if s.peer == peer {
				return nil
			}
			return fmt.Errorf("%w: %s", ErrAlreadyConnected, s.peer)
		}

		s.connected = true
		s.peer = peer
		s.connID = uuid.New().String()
		s.pool.Reset()

		s.debugLog("session: connected", "peer", peer, "conn_id", s.connID)
		s.logState(log.StateEntityConnection, "DISCONNECTED", "CONNECTED", "")
		s.post(func(cb Callbacks, peer string) {
			cb.ConnectionStateChanged(peer, true)
		})

		if features != 0 {
			s.applyFeatures(features)
		}
		return nil
	})
}

// OnFeatures reports the peer's SDP feature bitmap.
func (s *Session) OnFeatures(peer string, features wire.Features) error {
	return s.exec.do(func() error {
		if err := s.checkPeer(peer); err != nil {
			return err
		}
		s.applyFeatures(features)
		return nil
	})
}

// OnDisconnect reports that the connection is gone. Calling it again, or
// for a session that was never connected, does nothing.
func (s *Session) OnDisconnect(peer string) error {
	return s.exec.do(func() error {
		if !s.connected {
			return nil
		}
		if s.peer != peer {
			return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
		}
		s.disconnect("peer disconnected")
		return nil
	})
}

// OnMessage is the transport handler. It queues the message for the
// executor and returns.
func (s *Session) OnMessage(msg transport.Message) {
	if !s.exec.submit(func() { s.handleMessage(msg) }) {
		s.debugLog("session: dropping message, not running", "label", msg.Label)
	}
}

// State is a snapshot of the session.
type State struct {
	Connected         bool
	Peer              string
	ConnectionID      string
	Features          wire.Features
	Phase             procedure.Phase
	ProcedureComplete bool
	Volume            uint8
	VolumeSubscribed  bool
	TrackUID          uint64
	PlayStatus        wire.PlayStatus
	Polling           bool
	LabelsInUse       int
	Events            []notification.Event
}

// State returns a snapshot of the session.
func (s *Session) State() (State, error) {
	var st State
	err := s.exec.do(func() error {
		st = State{
			Connected:         s.connected,
			Peer:              s.peer,
			ConnectionID:      s.connID,
			Features:          s.features,
			Phase:             s.proc.Phase(),
			ProcedureComplete: s.proc.Complete(),
			Volume:            s.volume,
			VolumeSubscribed:  s.volState == volumeSubscribed,
			TrackUID:          s.trackUID,
			PlayStatus:        s.playStatus,
			Polling:           s.pollTimer != nil,
			LabelsInUse:       s.pool.InUse(),
			Events:            s.registry.Events(),
		}
		return nil
	})
	return st, err
}

func (s *Session) applyFeatures(features wire.Features) {
	if features.Has(wire.FeatureAdvancedControl) && s.absoluteVolumeBlocked() {
		s.debugLog("session: absolute volume disabled for peer", "peer", s.peer)
		features &^= wire.FeatureAdvancedControl
	}
	s.features = features
	s.debugLog("session: features", "peer", s.peer, "features", features.String())

	remote := wire.RemoteFeaturesOf(features)
	s.post(func(cb Callbacks, peer string) {
		cb.RemoteFeatures(peer, remote)
	})

	if !s.featuresProcessed {
		s.featuresProcessed = true
		if err := s.proc.Start(features); err != nil {
			s.warnLog("session: procedure start failed", "error", err)
		}
	}

	if features.Has(wire.FeatureAdvancedControl | wire.FeatureTarget) {
		if err := s.ensureVolumeSubscription(); err != nil {
			s.warnLog("session: volume registration failed", "error", err)
		}
	}
}

func (s *Session) absoluteVolumeBlocked() bool {
	if s.config.DisableAbsoluteVolume {
		return true
	}
	if properties.Bool(s.config.Properties, properties.DisableAbsoluteVolume, false) {
		return true
	}
	return slices.ContainsFunc(s.config.AbsoluteVolumeDenyList, func(addr string) bool {
		return strings.EqualFold(addr, s.peer)
	})
}

// disconnect clears all per-connection state in one pass.
func (s *Session) disconnect(reason string) {
	if !s.connected {
		return
	}

	s.stopPoll()
	s.pool.Reset()
	s.registry.Reset()
	s.proc.Reset()
	clear(s.outstanding)
	clear(s.inbound)

	s.features = 0
	s.featuresProcessed = false
	s.volume = wire.MaxVolume
	s.volLabel = transaction.NoLabel
	s.volState = volumeIdle
	s.trackUID = wire.InvalidTrackUID
	s.playStatus = wire.PlayStatusStopped
	s.connected = false

	s.debugLog("session: disconnected", "peer", s.peer, "reason", reason)
	s.logState(log.StateEntityConnection, "CONNECTED", "DISCONNECTED", reason)
	s.post(func(cb Callbacks, peer string) {
		cb.ConnectionStateChanged(peer, false)
	})

	s.peer = ""
	s.connID = ""
}

func (s *Session) checkConnected() error {
	if !s.connected {
		return ErrNotConnected
	}
	return nil
}

func (s *Session) checkPeer(peer string) error {
	if err := s.checkConnected(); err != nil {
		return err
	}
	if peer != s.peer {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}
	return nil
}

// sendCommand encodes cmd and starts a transaction for it.
func (s *Session) sendCommand(cmd *wire.Command) (uint8, error) {
	if err := s.checkConnected(); err != nil {
		return transaction.NoLabel, err
	}
	data, err := s.codec.EncodeCommand(cmd)
	if err != nil {
		return transaction.NoLabel, fmt.Errorf("encode %s: %w", cmd.PDU, err)
	}

	req := &request{pdu: cmd.PDU, code: cmd.Code, opcode: wire.OpcodeVendor}
	if p, ok := cmd.Params.(*wire.RegisterNotificationParams); ok {
		req.event = p.EventID
	}
	label, err := s.startTransaction(req, data)
	if err != nil {
		return transaction.NoLabel, err
	}
	s.logCommand(label, cmd, log.DirectionOut)
	return label, nil
}

// startTransaction acquires a label, sends data on it and arms its timer.
func (s *Session) startTransaction(req *request, data []byte) (uint8, error) {
	if err := s.checkConnected(); err != nil {
		return transaction.NoLabel, err
	}
	tx, err := s.pool.Acquire()
	if err != nil {
		s.logTransaction(log.TransactionExhausted, transaction.NoLabel, req.pdu)
		s.warnLog("session: no free label", "pdu", req.pdu.String())
		return transaction.NoLabel, err
	}
	s.logTransaction(log.TransactionAcquire, tx.Label, req.pdu)

	if err := s.transport.Send(s.peer, tx.Label, req.opcode, req.code, data); err != nil {
		s.release(tx.Label)
		return transaction.NoLabel, fmt.Errorf("send %s: %w", req.pdu, err)
	}
	if err := s.pool.ArmTimer(tx.Label, req.pdu, s.config.timeoutFor(req.code)); err != nil {
		s.release(tx.Label)
		return transaction.NoLabel, err
	}
	req.sentAt = time.Now()
	s.outstanding[tx.Label] = req
	return tx.Label, nil
}

// release frees a label and forgets its request.
func (s *Session) release(label uint8) {
	req := s.outstanding[label]
	delete(s.outstanding, label)
	s.pool.Release(label)

	pdu := wire.PduNone
	if req != nil {
		pdu = req.pdu
	}
	s.logTransaction(log.TransactionRelease, label, pdu)
}

// registerEvent is the notification registrar.
func (s *Session) registerEvent(id wire.EventID) (uint8, error) {
	return s.sendCommand(wire.NewRegisterNotification(id))
}

// onTimeout runs on a timer goroutine.
func (s *Session) onTimeout(t transaction.Timeout) {
	s.exec.submit(func() { s.handleTimeout(t) })
}

// post queues a host callback with the current peer.
func (s *Session) post(fn func(cb Callbacks, peer string)) {
	cb, peer := s.callbacks, s.peer
	s.notify.post(func() { fn(cb, peer) })
}

func (s *Session) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Session) warnLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// sessionSender lets the procedure send through the session.
type sessionSender struct{ s *Session }

func (a sessionSender) Send(cmd *wire.Command) error {
	_, err := a.s.sendCommand(cmd)
	return err
}

// sessionReporter forwards procedure results to the host.
type sessionReporter struct{ s *Session }

func (a sessionReporter) PlayerSettings(settings procedure.PlayerSettings) {
	a.s.post(func(cb Callbacks, peer string) {
		cb.PlayerAppSettings(peer, settings)
	})
}

func (a sessionReporter) PlayerSettingsChanged(values []wire.AttrValue) {
	a.s.post(func(cb Callbacks, peer string) {
		cb.PlayerAppSettingsChanged(peer, values)
	})
}

func (a sessionReporter) TrackChanged(attrs []wire.ElementAttribute) {
	a.s.post(func(cb Callbacks, peer string) {
		cb.TrackChanged(peer, attrs)
	})
}

func (a sessionReporter) PhaseChanged(from, to procedure.Phase) {
	a.s.logState(log.StateEntityProcedure, from.String(), to.String(), "")
}

var (
	_ procedure.Sender   = sessionSender{}
	_ procedure.Reporter = sessionReporter{}
)
