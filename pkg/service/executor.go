package service

import (
	"sync"
	"sync/atomic"
)

// executor runs tasks one at a time on a single goroutine.
type executor struct {
	tasks   chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
	stopped atomic.Bool
}

func newExecutor(size int) *executor {
	return &executor{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

func (e *executor) start() error {
	if e.stopped.Load() {
		return ErrNotStarted
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	e.wg.Add(1)
	go e.loop()
	return nil
}

// stop discards queued tasks and waits for the running one. It must not be
// called from a task.
func (e *executor) stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	e.stopped.Store(true)
	close(e.done)
	e.wg.Wait()
}

// submit queues fn without waiting for it. It reports false once stopped.
func (e *executor) submit(fn func()) bool {
	if !e.running.Load() {
		return false
	}
	select {
	case e.tasks <- fn:
		return true
	case <-e.done:
		return false
	}
}

// do runs fn on the executor and returns its result. It must not be called
// from a task.
func (e *executor) do(fn func() error) error {
	result := make(chan error, 1)
	if !e.submit(func() { result <- fn() }) {
		return ErrNotStarted
	}
	select {
	case err := <-result:
		return err
	case <-e.done:
		return ErrNotStarted
	}
}

func (e *executor) loop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case fn := <-e.tasks:
			fn()
		}
	}
}
