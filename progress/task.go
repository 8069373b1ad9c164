package progress

import (
	"iter"

	log "github.com/sirupsen/logrus"
)

// TaskState describes the lifecycle position of a task.
type TaskState int

const (
	StateCreated TaskState = iota
	StateStarted
	StateStopped
	StateCancelled
)

func (s TaskState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateCancelled:
		return "cancelled"
	}

	return "unknown"
}

// Task is a leaf unit of work owned by exactly one Progress.
//
// A task accumulates a completed amount against an (optionally unknown)
// expected amount. Once stopped or cancelled it becomes immutable and is
// removed from the owner's active set exactly once.
//
// All mutable state is guarded by the owner's lock.
type Task struct {
	owner *Progress

	label     string
	transient bool

	row    RowID
	hasRow bool

	// Guarded by owner.mu
	state         TaskState
	completed     WorkAmount
	expected      WorkAmount
	expectedKnown bool
	onStop        []func()
}

// Start marks the task as running and makes its display row visible.
// Calling Start more than once has no further effect.
func (t *Task) Start() {
	t.owner.startTask(t)
}

// Update adds delta to the completed amount and triggers the owner's
// recompute. Negative deltas are ignored with a warning: a task's
// completed amount never decreases while it is active.
func (t *Task) Update(delta WorkAmount) {
	if delta < 0 {
		log.WithFields(log.Fields{"delta": delta}).Warn("ignoring negative progress delta")

		return
	}

	t.owner.updateTask(t, delta)
}

// UpdateExpected overrides the task's expected amount of work.
// Negative amounts are ignored with a warning.
func (t *Task) UpdateExpected(expected WorkAmount) {
	if expected < 0 {
		log.WithFields(log.Fields{"expected": expected}).Warn("ignoring negative expected amount")

		return
	}

	t.owner.updateTaskExpected(t, expected)
}

// Stop finalizes the task as completed: its completed amount becomes part
// of the owner's permanent accumulation. Stop is idempotent -- repeated
// calls (e.g. an explicit Cancel followed by a deferred Stop) change the
// owner's counters only once.
func (t *Task) Stop() {
	t.owner.stopTask(t, false)
}

// Cancel finalizes the task as cancelled: it is permanently excluded from
// both the completed and the projected totals. Cancellation is a normal
// outcome, not an error.
func (t *Task) Cancel() {
	t.owner.stopTask(t, true)
}

// Completed returns the amount of work completed so far.
func (t *Task) Completed() WorkAmount {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()

	return t.completed
}

// Expected returns the expected amount of work and whether it is known.
func (t *Task) Expected() (WorkAmount, bool) {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()

	return t.expected, t.expectedKnown
}

// State returns the current lifecycle state.
func (t *Task) State() TaskState {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()

	return t.state
}

// OnStop registers a callback fired exactly once, after the task has been
// removed from the owner's active set. If the task is already stopped,
// f runs immediately.
func (t *Task) OnStop(f func()) {
	t.owner.mu.Lock()

	if t.state == StateStopped || t.state == StateCancelled {
		t.owner.mu.Unlock()
		f()

		return
	}

	t.onStop = append(t.onStop, f)

	t.owner.mu.Unlock()
}

// Range returns a lazy, finite, single-use sequence yielding 0..n-1.
// After the loop body finishes for each element the task's completed
// amount is incremented by one -- one increment per element, no batching.
//
// Iterating the returned sequence a second time yields nothing.
func (t *Task) Range(n int) iter.Seq[int] {
	var used bool

	return func(yield func(int) bool) {
		if used {
			return
		}
		used = true

		for i := 0; i < n; i++ {
			if !yield(i) {
				return
			}

			t.Update(1)
		}
	}
}

// Enumerate wraps seq into a single-use sequence of (index, element)
// pairs, incrementing the task's completed amount by one after each
// element is consumed.
func Enumerate[T any](t *Task, seq iter.Seq[T]) iter.Seq2[int, T] {
	var used bool

	return func(yield func(int, T) bool) {
		if used {
			return
		}
		used = true

		i := 0

		for v := range seq {
			if !yield(i, v) {
				return
			}

			t.Update(1)

			i++
		}
	}
}
