package fs

import (
	"sync"
	"time"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

// debouncer coalesces bursts of events per document id. An atomic write
// produces several filesystem events; consumers see one.
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]core.Event
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		timers:  make(map[string]*time.Timer),
		pending: make(map[string]core.Event),
	}
}

// add schedules fn with the coalesced event for e.ID once the id has been
// quiet for the delay.
func (d *debouncer) add(e core.Event, fn func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if prev, ok := d.pending[e.ID]; ok {
		e = coalesce(prev, e)
	}
	d.pending[e.ID] = e

	if t, ok := d.timers[e.ID]; ok {
		// A timer that already fired is waiting for the lock and will pick
		// up the pending event.
		if t.Stop() {
			t.Reset(d.delay)
		}
		return
	}

	id := e.ID
	d.wg.Add(1)
	d.timers[id] = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		ev, ok := d.pending[id]
		delete(d.pending, id)
		delete(d.timers, id)
		stopped := d.stopped
		d.mu.Unlock()
		if ok && !stopped {
			fn(ev)
		}
	})
}

// stopAndWait drops pending events and waits up to timeout for callbacks
// already running.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for id, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, id)
	}
	d.pending = make(map[string]core.Event)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// coalesce merges two events for the same id. A create followed by writes
// is still a create; a delete followed by a create is a modification.
func coalesce(prev, next core.Event) core.Event {
	switch {
	case prev.Type == core.EventCreate && next.Type == core.EventModify:
		next.Type = core.EventCreate
	case prev.Type == core.EventDelete && next.Type == core.EventCreate:
		next.Type = core.EventModify
	}
	return next
}
