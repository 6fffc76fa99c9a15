package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid file events to prevent index thrashing.
// Events for the same path within the debounce window are merged:
//   - CREATE + MODIFY = CREATE (file is still new)
//   - CREATE + DELETE = nothing (file never really existed)
//   - MODIFY + DELETE = DELETE (file is gone)
//   - DELETE + CREATE = MODIFY (file was replaced)
type Debouncer struct {
	window  time.Duration
	pending map[string]*FileEvent
	mu      sync.Mutex
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the given window duration.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*FileEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add adds an event to be debounced.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[event.Path]; ok {
		merged, drop := coalesce(existing.Operation, event)
		if drop {
			delete(d.pending, event.Path)
		} else {
			d.pending[event.Path] = merged
		}
	} else {
		e := event
		d.pending[event.Path] = &e
	}

	d.scheduleFlush()
}

// coalesce merges a new event into the pending operation for its path.
// drop is true when the events cancel out entirely.
func coalesce(pendingOp Operation, event FileEvent) (merged *FileEvent, drop bool) {
	out := event

	switch pendingOp {
	case OpCreate:
		switch event.Operation {
		case OpModify:
			// Still a brand-new file from the index's point of view
			out.Operation = OpCreate
		case OpDelete:
			return nil, true
		}

	case OpModify:
		// MODIFY + anything keeps the newer operation, except that a
		// CREATE after MODIFY means the file was replaced in place.
		if event.Operation == OpCreate {
			out.Operation = OpModify
		}

	case OpDelete:
		if event.Operation == OpCreate {
			// Replaced: existing index entries must be refreshed
			out.Operation = OpModify
		}
	}

	return &out, false
}

// scheduleFlush restarts the flush timer. Caller must hold the lock.
func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits all pending events as one batch.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]FileEvent, 0, len(d.pending))
	for _, e := range d.pending {
		events = append(events, *e)
	}
	d.pending = make(map[string]*FileEvent)

	select {
	case d.output <- events:
	default:
		// Consumer is behind. Requeue the batch and flush again after
		// another window; a lost DELETE would orphan index rows.
		for i := range events {
			e := events[i]
			d.pending[e.Path] = &e
		}
		d.scheduleFlush()
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop stops the debouncer and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
