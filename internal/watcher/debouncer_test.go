package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectBatch(t *testing.T, d *Debouncer, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_EmitsAfterWindow(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	// When: adding a single event
	d.Add(FileEvent{Path: "/docs/a.txt", Operation: OpCreate, Timestamp: time.Now()})

	// Then: the event is emitted after the window
	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "/docs/a.txt", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_CoalescesCreateModify(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/docs/a.txt", Operation: OpCreate})
	d.Add(FileEvent{Path: "/docs/a.txt", Operation: OpModify})

	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_CreateDeleteCancelsOut(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/docs/tmp.txt", Operation: OpCreate})
	d.Add(FileEvent{Path: "/docs/tmp.txt", Operation: OpDelete})
	// A second path keeps the batch non-empty
	d.Add(FileEvent{Path: "/docs/keep.txt", Operation: OpModify})

	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "/docs/keep.txt", batch[0].Path)
}

func TestDebouncer_ModifyDeleteBecomesDelete(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/docs/a.txt", Operation: OpModify})
	d.Add(FileEvent{Path: "/docs/a.txt", Operation: OpDelete})

	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, OpDelete, batch[0].Operation)
}

func TestDebouncer_DeleteCreateBecomesModify(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/docs/a.txt", Operation: OpDelete})
	d.Add(FileEvent{Path: "/docs/a.txt", Operation: OpCreate})

	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_SeparatePathsStayIndependent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/docs/a.txt", Operation: OpCreate})
	d.Add(FileEvent{Path: "/docs/b.txt", Operation: OpDelete})

	batch := collectBatch(t, d, time.Second)
	assert.Len(t, batch, 2)
}

func TestDebouncer_WindowRestartsOnNewEvent(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/docs/a.txt", Operation: OpModify})
	time.Sleep(25 * time.Millisecond)
	d.Add(FileEvent{Path: "/docs/a.txt", Operation: OpModify})

	// The first window would have expired here; nothing must be emitted yet
	select {
	case <-d.Output():
		t.Fatal("batch emitted before the restarted window expired")
	case <-time.After(35 * time.Millisecond):
	}

	batch := collectBatch(t, d, time.Second)
	assert.Len(t, batch, 1)
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Stop()
	d.Stop()

	// Adds after stop are ignored
	d.Add(FileEvent{Path: "/docs/a.txt", Operation: OpCreate})

	_, open := <-d.Output()
	assert.False(t, open)
}

func TestCoalesce_AllRules(t *testing.T) {
	tests := []struct {
		name     string
		pending  Operation
		incoming Operation
		expected Operation
		dropped  bool
	}{
		{"create then modify", OpCreate, OpModify, OpCreate, false},
		{"create then delete", OpCreate, OpDelete, 0, true},
		{"modify then modify", OpModify, OpModify, OpModify, false},
		{"modify then delete", OpModify, OpDelete, OpDelete, false},
		{"modify then create", OpModify, OpCreate, OpModify, false},
		{"delete then create", OpDelete, OpCreate, OpModify, false},
		{"delete then delete", OpDelete, OpDelete, OpDelete, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, drop := coalesce(tt.pending, FileEvent{Path: "/x", Operation: tt.incoming})
			assert.Equal(t, tt.dropped, drop)
			if !drop {
				require.NotNil(t, merged)
				assert.Equal(t, tt.expected, merged.Operation)
			}
		})
	}
}

func TestDebouncer_RetriesWhenOutputFull(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	// Occupy every output slot so the first flush cannot deliver.
	for i := 0; i < cap(d.output); i++ {
		d.output <- []FileEvent{{Path: "/filler"}}
	}

	d.Add(FileEvent{Path: "/kept.txt", Operation: OpDelete})
	time.Sleep(60 * time.Millisecond)

	// Drain the filler; the delete must surface on a later flush
	// rather than being dropped.
	for i := 0; i < cap(d.output); i++ {
		<-d.output
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch := <-d.Output():
			for _, e := range batch {
				if e.Path == "/kept.txt" && e.Operation == OpDelete {
					return
				}
			}
		case <-deadline:
			t.Fatal("requeued delete never flushed")
		}
	}
}
