package transaction

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rcctl/avrcp-go/pkg/wire"
)

// Pool limits.
const (
	// PoolSize is the number of AVCTP transaction labels.
	PoolSize = 16

	// NoLabel is the sentinel for "no label held".
	NoLabel uint8 = PoolSize
)

// Default timeouts.
const (
	DefaultStatusTimeout  = 2 * time.Second
	DefaultControlTimeout = 2 * time.Second
	DefaultInterimTimeout = 2 * time.Second
)

// Pool errors.
var (
	ErrPoolExhausted = errors.New("transaction pool exhausted")
	ErrInvalidLabel  = errors.New("invalid transaction label")
	ErrNotInUse      = errors.New("transaction not in use")
)

// Timeout is delivered when a transaction timer fires. It is a value copy;
// hand it to Expire on the owning goroutine to check it is still current.
type Timeout struct {
	Label      uint8
	PDU        wire.PduID
	Generation uint64
}

// Transaction is a snapshot of one in-use slot.
type Transaction struct {
	Label      uint8
	PDU        wire.PduID
	Generation uint64
	Armed      bool
	AcquiredAt time.Time
}

type slot struct {
	inUse      bool
	pdu        wire.PduID
	generation uint64
	acquiredAt time.Time
	timer      *time.Timer
}

// Pool is a fixed-size allocator of transaction labels with attached timers.
// It is safe for concurrent use.
type Pool struct {
	mu    sync.Mutex
	slots [PoolSize]slot

	// Callback when a timer fires. Called from the timer goroutine without
	// the pool lock held.
	onTimeout func(Timeout)
}

// NewPool creates a pool. onTimeout receives every timer expiry; it must not
// block.
func NewPool(onTimeout func(Timeout)) *Pool {
	return &Pool{onTimeout: onTimeout}
}

// Acquire reserves the lowest free label.
func (p *Pool) Acquire() (Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.slots {
		s := &p.slots[i]
		if s.inUse {
			continue
		}
		s.inUse = true
		s.pdu = wire.PduNone
		s.generation++
		s.acquiredAt = time.Now()
		return s.snapshot(uint8(i)), nil
	}
	return Transaction{}, ErrPoolExhausted
}

// Release stops the label's timer and frees it. Releasing a free or invalid
// label is a no-op.
func (p *Pool) Release(label uint8) {
	if label >= PoolSize {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := &p.slots[label]
	if !s.inUse {
		return
	}
	s.stopTimer()
	s.inUse = false
	s.pdu = wire.PduNone
	s.generation++
}

// Lookup returns the transaction for an in-use label.
func (p *Pool) Lookup(label uint8) (Transaction, bool) {
	if label >= PoolSize {
		return Transaction{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := &p.slots[label]
	if !s.inUse {
		return Transaction{}, false
	}
	return s.snapshot(label), true
}

// ArmTimer records the PDU the label waits on and starts (or restarts) its
// timer.
func (p *Pool) ArmTimer(label uint8, pdu wire.PduID, d time.Duration) error {
	if label >= PoolSize {
		return fmt.Errorf("%w: %d", ErrInvalidLabel, label)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := &p.slots[label]
	if !s.inUse {
		return fmt.Errorf("%w: %d", ErrNotInUse, label)
	}
	s.stopTimer()
	s.pdu = pdu
	s.generation++

	t := Timeout{Label: label, PDU: pdu, Generation: s.generation}
	s.timer = time.AfterFunc(d, func() {
		p.fire(t)
	})
	return nil
}

// CancelTimer stops the label's timer but keeps the label reserved.
func (p *Pool) CancelTimer(label uint8) {
	if label >= PoolSize {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := &p.slots[label]
	if !s.inUse {
		return
	}
	if s.stopTimer() {
		s.generation++
	}
}

// Expire consumes a Timeout. It returns true only if the label is still in
// use and has not been released, re-armed or cancelled since the timer was
// armed. The label stays reserved; the caller releases it.
func (p *Pool) Expire(t Timeout) bool {
	if t.Label >= PoolSize {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := &p.slots[t.Label]
	if !s.inUse || s.generation != t.Generation || s.timer == nil {
		return false
	}
	s.timer = nil
	return true
}

// Reset stops every timer and frees every label.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.slots {
		s := &p.slots[i]
		s.stopTimer()
		s.inUse = false
		s.pdu = wire.PduNone
		s.generation++
	}
}

// InUse returns the number of reserved labels.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for i := range p.slots {
		if p.slots[i].inUse {
			n++
		}
	}
	return n
}

// fire runs on the timer goroutine.
func (p *Pool) fire(t Timeout) {
	p.mu.Lock()
	s := &p.slots[t.Label]
	current := s.inUse && s.generation == t.Generation
	cb := p.onTimeout
	p.mu.Unlock()

	if current && cb != nil {
		cb(t)
	}
}

func (s *slot) snapshot(label uint8) Transaction {
	return Transaction{
		Label:      label,
		PDU:        s.pdu,
		Generation: s.generation,
		Armed:      s.timer != nil,
		AcquiredAt: s.acquiredAt,
	}
}

// stopTimer stops and clears the timer, reporting whether one was set.
func (s *slot) stopTimer() bool {
	if s.timer == nil {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	return true
}
