package watcher

import (
	"sync"
	"time"

	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/trees"
)

type debounceKey struct {
	ref  trees.Ref
	name string
}

// Debouncer holds modification events back until no further modification
// of the same entry arrived for the configured delay.
type Debouncer struct {
	delay   time.Duration
	out     chan trees.MonitorEvent
	mu      sync.Mutex
	pending map[debounceKey]*time.Timer
	closed  bool
}

func NewDebouncer(delay time.Duration, queueCapacity int) *Debouncer {
	return &Debouncer{
		delay:   delay,
		out:     make(chan trees.MonitorEvent, queueCapacity),
		pending: make(map[debounceKey]*time.Timer),
	}
}

// Add schedules e, replacing a pending event for the same entry.
func (d *Debouncer) Add(e trees.MonitorEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	key := debounceKey{ref: e.Ref, name: e.Name}
	if timer, ok := d.pending[key]; ok {
		timer.Stop()
	}
	d.pending[key] = time.AfterFunc(d.delay, func() {
		d.fire(key, e)
	})
}

func (d *Debouncer) fire(key debounceKey, e trees.MonitorEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	delete(d.pending, key)
	select {
	case d.out <- e:
	default:
	}
}

// Cancel drops the pending event of an entry, if any.
func (d *Debouncer) Cancel(ref trees.Ref, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := debounceKey{ref: ref, name: name}
	if timer, ok := d.pending[key]; ok {
		timer.Stop()
		delete(d.pending, key)
	}
}

// Events returns the debounced events channel
func (d *Debouncer) Events() <-chan trees.MonitorEvent {
	return d.out
}

// Close stops pending timers and closes the events channel.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for key, timer := range d.pending {
		timer.Stop()
		delete(d.pending, key)
	}
	close(d.out)
}
