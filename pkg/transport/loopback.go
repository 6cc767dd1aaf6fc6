package transport

import (
	"fmt"
	"sync"

	"github.com/rcctl/avrcp-go/pkg/log"
	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Loopback is one end of an in-memory transport pair. Frames sent on one
// end are delivered to the other end's handler on a dedicated goroutine,
// asynchronously and in send order.
type Loopback struct {
	addr   string
	remote *Loopback

	mu      sync.Mutex
	queue   []Message
	handler Handler
	started bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	logger log.Logger
	connID string
}

// NewLoopbackPair returns two connected ends. Messages arriving at a carry
// Peer == addrB and vice versa.
func NewLoopbackPair(addrA, addrB string) (*Loopback, *Loopback) {
	a := newLoopback(addrA)
	b := newLoopback(addrB)
	a.remote = b
	b.remote = a
	return a, b
}

func newLoopback(addr string) *Loopback {
	return &Loopback{
		addr: addr,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Addr returns the address of this end.
func (l *Loopback) Addr() string {
	return l.addr
}

// RemoteAddr returns the address of the other end.
func (l *Loopback) RemoteAddr() string {
	return l.remote.addr
}

// SetProtocolLogger enables frame capture on this end.
func (l *Loopback) SetProtocolLogger(logger log.Logger, connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = logger
	l.connID = connID
}

// Start begins delivering inbound messages to handler. Messages queued
// before Start are delivered first.
func (l *Loopback) Start(handler Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.started {
		return ErrAlreadyStarted
	}
	l.started = true
	l.handler = handler

	l.wg.Add(1)
	go l.deliverLoop()
	l.signal()
	return nil
}

// Send encodes a frame and queues it at the remote end.
func (l *Loopback) Send(peer string, label uint8, op wire.Opcode, code wire.Code, data []byte) error {
	if peer != l.remote.addr {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}

	l.mu.Lock()
	closed := l.closed
	logger, connID := l.logger, l.connID
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	frame, err := EncodeFrame(Message{Label: label, Opcode: op, Code: code, Data: data})
	if err != nil {
		return err
	}
	if logger != nil {
		logger.Log(frameEvent(connID, frame, log.DirectionOut))
	}

	// Decoding on the way across keeps both ends honest about the frame format.
	msg, err := DecodeFrame(frame)
	if err != nil {
		return err
	}
	msg.Peer = l.addr
	return l.remote.enqueue(msg)
}

// Close stops delivery on this end and waits for the delivery goroutine.
// Sends to a closed end fail with ErrClosed. Close must not be called from
// this end's handler.
func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.queue = nil
	close(l.done)
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

// Pending returns the number of messages queued for delivery on this end.
func (l *Loopback) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loopback) enqueue(msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.queue = append(l.queue, msg)
	if l.started {
		l.signal()
	}
	return nil
}

// signal wakes the delivery goroutine without blocking. Caller holds mu.
func (l *Loopback) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loopback) deliverLoop() {
	defer l.wg.Done()

	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if l.closed || len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			msg := l.queue[0]
			l.queue = l.queue[1:]
			handler, logger, connID := l.handler, l.logger, l.connID
			l.mu.Unlock()

			if logger != nil {
				if frame, err := EncodeFrame(msg); err == nil {
					logger.Log(frameEvent(connID, frame, log.DirectionIn))
				}
			}
			if handler != nil {
				handler(msg)
			}
		}
	}
}

var _ Transport = (*Loopback)(nil)
