package remote

import (
	"iter"
	"sync"
)

// TaskHandle is a live stand-in for a Task owned by another process.
// Every operation is forwarded synchronously over the cached connection
// and blocks for the reply; a remote-side error is returned to the
// caller. Aggregation state lives only in the owning process.
type TaskHandle struct {
	handle Handle
	c      *client

	unreg sync.Once

	mu  sync.Mutex
	err error
}

// ResolveTask reconstructs a handle into a live task stand-in, verifying
// that the id is still registered and refers to a task.
func ResolveTask(h Handle) (*TaskHandle, error) {
	c, err := h.resolve(KindTask)
	if err != nil {
		return nil, err
	}

	return &TaskHandle{handle: h, c: c}, nil
}

// Handle returns the serializable reference this stand-in was built from.
func (t *TaskHandle) Handle() Handle {
	return t.handle
}

func (t *TaskHandle) Start() error {
	return t.c.call("Task.Start", &IDArgs{ID: t.handle.ID}, &Empty{})
}

func (t *TaskHandle) Update(delta int64) error {
	return t.c.call("Task.Update", &TaskUpdateArgs{ID: t.handle.ID, Delta: &delta}, &Empty{})
}

func (t *TaskHandle) UpdateExpected(expected int64) error {
	return t.c.call("Task.Update", &TaskUpdateArgs{ID: t.handle.ID, Expected: &expected}, &Empty{})
}

// Stop finalizes the remote task as completed and then requests
// unregistration of its id, so a stopped task never leaks a registry
// entry. The whole finalization runs exactly once: duplicate Stop or
// Cancel calls (explicit cancel followed by a deferred stop) are local
// no-ops and never hit the wire again.
func (t *TaskHandle) Stop() error {
	return t.finalize(false)
}

// Cancel finalizes the remote task as cancelled and unregisters it.
func (t *TaskHandle) Cancel() error {
	return t.finalize(true)
}

func (t *TaskHandle) finalize(cancelled bool) error {
	var err error

	t.unreg.Do(func() {
		err = t.c.call("Task.Stop", &TaskStopArgs{ID: t.handle.ID, Cancelled: cancelled}, &Empty{})

		uerr := t.c.call("Registry.Unregister", &IDArgs{ID: t.handle.ID}, &Empty{})
		if err == nil {
			err = uerr
		}
	})

	return err
}

func (t *TaskHandle) Completed() (int64, error) {
	var reply AmountReply

	if err := t.c.call("Task.Completed", &IDArgs{ID: t.handle.ID}, &reply); err != nil {
		return 0, err
	}

	return reply.Amount, nil
}

func (t *TaskHandle) Expected() (int64, bool, error) {
	var reply AmountReply

	if err := t.c.call("Task.Expected", &IDArgs{ID: t.handle.ID}, &reply); err != nil {
		return 0, false, err
	}

	return reply.Amount, reply.Known, nil
}

// Range returns a lazy, single-use sequence yielding 0..n-1 and reporting
// one increment per element over the wire. Iteration stops early if a
// call fails; check Err afterwards.
func (t *TaskHandle) Range(n int) iter.Seq[int] {
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

			if err := t.Update(1); err != nil {
				t.setErr(err)

				return
			}
		}
	}
}

// Err returns the first error recorded during Range or Enumerate.
func (t *TaskHandle) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.err
}

func (t *TaskHandle) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err == nil {
		t.err = err
	}
}

// Enumerate wraps seq into a single-use sequence of (index, element)
// pairs, reporting one increment per consumed element over the wire.
// Iteration stops early if a call fails; check the stand-in's Err.
func Enumerate[T any](t *TaskHandle, seq iter.Seq[T]) iter.Seq2[int, T] {
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

			if err := t.Update(1); err != nil {
				t.setErr(err)

				return
			}

			i++
		}
	}
}
