package clock

import (
	"log"
	"sync"
	"time"
)

// Clock drives one countdown at a time. Start replaces any countdown still
// running; Cancel is idempotent and never blocks on the callbacks.
type Clock interface {
	Start(d time.Duration, onTick func(remainingSeconds int), onComplete func())
	Cancel()
}

type Ticker struct {
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{interval: interval}
}

func (t *Ticker) Start(d time.Duration, onTick func(remainingSeconds int), onComplete func()) {
	t.mu.Lock()
	t.cancelLocked()
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go t.run(d, stop, onTick, onComplete)
}

func (t *Ticker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Ticker) cancelLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Ticker) run(d time.Duration, stop <-chan struct{}, onTick func(int), onComplete func()) {
	endTime := time.Now().Add(d)
	done := time.NewTimer(d)
	defer done.Stop()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return

		case <-done.C:
			if stopped(stop) {
				return
			}
			if onComplete != nil {
				onComplete()
			}
			t.release(stop)
			return

		case <-ticker.C:
			if stopped(stop) {
				return
			}
			remaining := time.Until(endTime)
			if remaining < 0 {
				remaining = 0
			}
			if onTick != nil {
				onTick(int(remaining.Round(time.Second) / time.Second))
			}
		}
	}
}

// release clears the stop channel once a countdown finishes on its own, unless
// a newer countdown has already replaced it.
func (t *Ticker) release(stop <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == stop {
		t.stop = nil
		log.Println("Clock: countdown finished.")
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
