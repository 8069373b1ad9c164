package remote

import "sync"

// ProgressHandle is a live stand-in for a Progress owned by another
// process. Tasks added through it are created and aggregated in the
// owning process; the caller only receives handles.
type ProgressHandle struct {
	handle Handle
	c      *client

	unreg sync.Once
}

// ResolveProgress reconstructs a handle into a live progress stand-in,
// verifying that the id is still registered and refers to a progress.
func ResolveProgress(h Handle) (*ProgressHandle, error) {
	c, err := h.resolve(KindProgress)
	if err != nil {
		return nil, err
	}

	return &ProgressHandle{handle: h, c: c}, nil
}

// Handle returns the serializable reference this stand-in was built from.
func (p *ProgressHandle) Handle() Handle {
	return p.handle
}

// AddTask creates a task with a known expected amount under the remote
// Progress and returns a stand-in for it.
func (p *ProgressHandle) AddTask(expected int64, label string) (*TaskHandle, error) {
	return p.addTask(&AddTaskArgs{
		ID:            p.handle.ID,
		Expected:      expected,
		ExpectedKnown: true,
		Label:         label,
	})
}

// AddTaskUnknown creates a task whose expected amount is not known yet.
func (p *ProgressHandle) AddTaskUnknown(label string) (*TaskHandle, error) {
	return p.addTask(&AddTaskArgs{
		ID:    p.handle.ID,
		Label: label,
	})
}

func (p *ProgressHandle) addTask(args *AddTaskArgs) (*TaskHandle, error) {
	var reply HandleReply

	if err := p.c.call("Progress.AddTask", args, &reply); err != nil {
		return nil, err
	}

	return &TaskHandle{
		handle: reply.Handle,
		c:      dial(reply.Handle.Addr, reply.Handle.Secret),
	}, nil
}

// AddCancelledTask records a pre-cancelled unit on the remote Progress.
func (p *ProgressHandle) AddCancelledTask() error {
	return p.c.call("Progress.AddCancelledTask", &IDArgs{ID: p.handle.ID}, &Empty{})
}

// Stop stops the remote Progress and then requests unregistration of its
// id. The finalization runs exactly once; repeated calls are local no-ops.
func (p *ProgressHandle) Stop() error {
	var err error

	p.unreg.Do(func() {
		err = p.c.call("Progress.Stop", &IDArgs{ID: p.handle.ID}, &Empty{})

		uerr := p.c.call("Registry.Unregister", &IDArgs{ID: p.handle.ID}, &Empty{})
		if err == nil {
			err = uerr
		}
	})

	return err
}

func (p *ProgressHandle) WorkCompleted() (int64, error) {
	var reply AmountReply

	if err := p.c.call("Progress.Completed", &IDArgs{ID: p.handle.ID}, &reply); err != nil {
		return 0, err
	}

	return reply.Amount, nil
}

func (p *ProgressHandle) WorkExpected() (int64, bool, error) {
	var reply AmountReply

	if err := p.c.call("Progress.Expected", &IDArgs{ID: p.handle.ID}, &reply); err != nil {
		return 0, false, err
	}

	return reply.Amount, reply.Known, nil
}
