package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
)

var ErrDispatcherClosed = errors.New("write dispatcher closed")

type writeOp struct {
	name    string
	run     func(ctx context.Context) error
	flushed chan struct{} // set for barrier ops only
}

// Dispatcher runs store writes on a single goroutine so callers never wait on
// storage latency. Writes are applied in the order they were queued.
type Dispatcher struct {
	ops       chan writeOp
	timeout   time.Duration
	onFailure func(op string, err error)
	wg        conc.WaitGroup

	closeMu sync.RWMutex
	closed  bool

	errMu sync.Mutex
	errs  error
}

func NewDispatcher(buffer int, timeout time.Duration, onFailure func(op string, err error)) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &Dispatcher{
		ops:       make(chan writeOp, buffer),
		timeout:   timeout,
		onFailure: onFailure,
	}
	d.wg.Go(d.run)
	return d
}

// Dispatch queues fn. It only blocks when the queue is full.
func (d *Dispatcher) Dispatch(name string, fn func(ctx context.Context) error) error {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return fmt.Errorf("%s: %w", name, ErrDispatcherClosed)
	}
	d.ops <- writeOp{name: name, run: fn}
	return nil
}

// Wait blocks until every write queued before the call has been attempted.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})

	d.closeMu.RLock()
	if d.closed {
		d.closeMu.RUnlock()
		return nil
	}
	select {
	case d.ops <- writeOp{name: "flush", flushed: done}:
	case <-ctx.Done():
		d.closeMu.RUnlock()
		return ctx.Err()
	}
	d.closeMu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TakeErrors returns the write failures seen since the last call and clears them.
func (d *Dispatcher) TakeErrors() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	err := d.errs
	d.errs = nil
	return err
}

// Close drains the queue and stops the writer goroutine.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ops)
	}
	d.closeMu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer log.Println("Write dispatcher stopped.")

	for op := range d.ops {
		if op.flushed != nil {
			close(op.flushed)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := op.run(ctx)
		cancel()
		if err == nil {
			continue
		}

		log.Printf("Warning: write %q failed: %v", op.name, err)
		d.errMu.Lock()
		d.errs = multierr.Append(d.errs, fmt.Errorf("%s: %w", op.name, err))
		d.errMu.Unlock()
		if d.onFailure != nil {
			d.onFailure(op.name, err)
		}
	}
}
