package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Transport errors.
var (
	ErrClosed         = errors.New("transport closed")
	ErrUnknownPeer    = errors.New("unknown peer")
	ErrAlreadyStarted = errors.New("transport already started")
)

// StreamConfig configures a StreamTransport.
type StreamConfig struct {
	// Peer is the remote address reported on inbound messages.
	Peer string

	// MaxFrameSize bounds a single frame (default: DefaultMaxFrameSize).
	MaxFrameSize uint32

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// StreamTransport exchanges length-prefixed AVCTP frames over a byte stream.
type StreamTransport struct {
	conn   io.ReadWriteCloser
	framer *Framer
	peer   string
	logger *slog.Logger

	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	errMu sync.Mutex
	err   error
}

// NewStreamTransport wraps conn. Call Start to begin reading.
func NewStreamTransport(conn io.ReadWriteCloser, config StreamConfig) *StreamTransport {
	return &StreamTransport{
		conn:   conn,
		framer: NewFramer(conn, config.MaxFrameSize),
		peer:   config.Peer,
		logger: config.Logger,
		done:   make(chan struct{}),
	}
}

// SetProtocolLogger enables frame capture.
func (t *StreamTransport) SetProtocolLogger(logger log.Logger, connID string) {
	t.framer.SetLogger(logger, connID)
}

// Peer returns the remote address.
func (t *StreamTransport) Peer() string {
	return t.peer
}

// Start launches the read loop. Inbound messages are passed to handler on
// the read goroutine, in arrival order. The transport closes when ctx is
// cancelled.
func (t *StreamTransport) Start(ctx context.Context, handler Handler) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if t.closed.Load() {
		return ErrClosed
	}

	go func() {
		select {
		case <-ctx.Done():
			t.Close()
		case <-t.done:
		}
	}()
	go t.readLoop(handler)
	return nil
}

// Send writes one frame to the peer.
func (t *StreamTransport) Send(peer string, label uint8, op wire.Opcode, code wire.Code, data []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if peer != "" && t.peer != "" && peer != t.peer {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}
	frame, err := EncodeFrame(Message{Label: label, Opcode: op, Code: code, Data: data})
	if err != nil {
		return err
	}
	return t.framer.WriteFrame(frame)
}

// Close closes the stream. It is safe to call multiple times.
func (t *StreamTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		err = t.conn.Close()
		if !t.running.Load() {
			close(t.done)
		}
	})
	return err
}

// Done is closed when the read loop exits.
func (t *StreamTransport) Done() <-chan struct{} {
	return t.done
}

// Err returns the error that ended the read loop, or nil for a clean close.
func (t *StreamTransport) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

func (t *StreamTransport) readLoop(handler Handler) {
	defer close(t.done)

	for {
		data, err := t.framer.ReadFrame()
		if err != nil {
			if !t.closed.Load() && !errors.Is(err, io.EOF) {
				t.errMu.Lock()
				t.err = err
				t.errMu.Unlock()
				t.debugLog("transport: read failed", "peer", t.peer, "error", err)
			}
			t.closed.Store(true)
			t.conn.Close()
			return
		}

		msg, err := DecodeFrame(data)
		if err != nil {
			t.debugLog("transport: dropping malformed frame", "peer", t.peer, "error", err)
			continue
		}
		msg.Peer = t.peer
		if handler != nil {
			handler(msg)
		}
	}
}

func (t *StreamTransport) debugLog(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

var _ Transport = (*StreamTransport)(nil)
