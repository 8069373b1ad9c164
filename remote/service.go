package remote

import (
	"net/http"

	"github.com/moi90/richer-progress/progress"
)

// The wire contract is a fixed, closed set of operations. Method names are
// versioned by the service names registered on the endpoint ("Registry",
// "Task", "Progress"); adding an operation means adding a method here and
// a matching call on the stand-in side.

// Empty is the reply of operations that only report success.
type Empty struct{}

// IDArgs addresses a single registered object.
type IDArgs struct {
	ID string `json:"id"`
}

// ResolveReply reports the kind of a resolved object.
type ResolveReply struct {
	Kind Kind `json:"kind"`
}

// AmountReply carries a work amount and whether it is known.
type AmountReply struct {
	Amount int64 `json:"amount"`
	Known  bool  `json:"known"`
}

// TaskUpdateArgs carries an optional completed delta and an optional new
// expected amount, mirroring the two-sided update operation.
type TaskUpdateArgs struct {
	ID       string `json:"id"`
	Delta    *int64 `json:"delta,omitempty"`
	Expected *int64 `json:"expected,omitempty"`
}

// TaskStopArgs finalizes a task, optionally as cancelled.
type TaskStopArgs struct {
	ID        string `json:"id"`
	Cancelled bool   `json:"cancelled"`
}

// AddTaskArgs creates a task under a published Progress.
type AddTaskArgs struct {
	ID            string `json:"id"`
	Expected      int64  `json:"expected"`
	ExpectedKnown bool   `json:"expected_known"`
	Label         string `json:"label,omitempty"`
	Keep          bool   `json:"keep,omitempty"`
}

// HandleReply returns a handle for an object created on the remote side.
type HandleReply struct {
	Handle Handle `json:"handle"`
}

// RegistryService exposes resolution and cleanup of registered ids.
type RegistryService struct {
	reg *Registry
}

func (s *RegistryService) Resolve(_ *http.Request, args *IDArgs, reply *ResolveReply) error {
	e, err := s.reg.lookup(args.ID)
	if err != nil {
		return err
	}

	reply.Kind = e.kind

	return nil
}

func (s *RegistryService) Unregister(_ *http.Request, args *IDArgs, _ *Empty) error {
	s.reg.Unregister(args.ID)

	return nil
}

// TaskService exposes the task operations to remote stand-ins.
type TaskService struct {
	reg *Registry
}

func (s *TaskService) task(id string) (*progress.Task, error) {
	e, err := s.reg.lookup(id)
	if err != nil {
		return nil, err
	}

	return e.task()
}

func (s *TaskService) Start(_ *http.Request, args *IDArgs, _ *Empty) error {
	t, err := s.task(args.ID)
	if err != nil {
		return err
	}

	t.Start()

	return nil
}

func (s *TaskService) Stop(_ *http.Request, args *TaskStopArgs, _ *Empty) error {
	t, err := s.task(args.ID)
	if err != nil {
		return err
	}

	if args.Cancelled {
		t.Cancel()
	} else {
		t.Stop()
	}

	return nil
}

func (s *TaskService) Cancel(_ *http.Request, args *IDArgs, _ *Empty) error {
	t, err := s.task(args.ID)
	if err != nil {
		return err
	}

	t.Cancel()

	return nil
}

func (s *TaskService) Update(_ *http.Request, args *TaskUpdateArgs, _ *Empty) error {
	t, err := s.task(args.ID)
	if err != nil {
		return err
	}

	if args.Delta != nil {
		t.Update(*args.Delta)
	}
	if args.Expected != nil {
		t.UpdateExpected(*args.Expected)
	}

	return nil
}

func (s *TaskService) Completed(_ *http.Request, args *IDArgs, reply *AmountReply) error {
	t, err := s.task(args.ID)
	if err != nil {
		return err
	}

	reply.Amount = t.Completed()
	reply.Known = true

	return nil
}

func (s *TaskService) Expected(_ *http.Request, args *IDArgs, reply *AmountReply) error {
	t, err := s.task(args.ID)
	if err != nil {
		return err
	}

	reply.Amount, reply.Known = t.Expected()

	return nil
}

// ProgressService exposes the progress operations to remote stand-ins.
type ProgressService struct {
	reg *Registry
}

func (s *ProgressService) prog(id string) (*progress.Progress, error) {
	e, err := s.reg.lookup(id)
	if err != nil {
		return nil, err
	}

	return e.prog()
}

// AddTask creates a task under the addressed Progress and publishes it, so
// the caller receives a handle it can drive like any other remote task.
func (s *ProgressService) AddTask(_ *http.Request, args *AddTaskArgs, reply *HandleReply) error {
	p, err := s.prog(args.ID)
	if err != nil {
		return err
	}

	var opts []progress.TaskOption

	if args.Label != "" {
		opts = append(opts, progress.TaskLabel(args.Label))
	}
	if args.Keep {
		opts = append(opts, progress.KeepRow())
	}

	var t *progress.Task

	if args.ExpectedKnown {
		t = p.AddTask(args.Expected, opts...)
	} else {
		t = p.AddTaskUnknown(opts...)
	}

	h, err := s.reg.Publish(t)
	if err != nil {
		return err
	}

	reply.Handle = h

	return nil
}

func (s *ProgressService) AddCancelledTask(_ *http.Request, args *IDArgs, _ *Empty) error {
	p, err := s.prog(args.ID)
	if err != nil {
		return err
	}

	p.AddCancelledTask()

	return nil
}

func (s *ProgressService) Stop(_ *http.Request, args *IDArgs, _ *Empty) error {
	p, err := s.prog(args.ID)
	if err != nil {
		return err
	}

	p.Stop()

	return nil
}

func (s *ProgressService) Completed(_ *http.Request, args *IDArgs, reply *AmountReply) error {
	p, err := s.prog(args.ID)
	if err != nil {
		return err
	}

	reply.Amount = p.WorkCompleted()
	reply.Known = true

	return nil
}

func (s *ProgressService) Expected(_ *http.Request, args *IDArgs, reply *AmountReply) error {
	p, err := s.prog(args.ID)
	if err != nil {
		return err
	}

	reply.Amount, reply.Known = p.WorkExpected()

	return nil
}
