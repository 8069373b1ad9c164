package progress

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// WorkAmount is the numeric unit of work. Counts are 64-bit integers;
// callers tracking real-valued quantities are expected to scale them
// into integer units.
type WorkAmount = int64

var (
	ErrNegativeTaskCount    = errors.New("expected task count cannot be negative")
	ErrConflictingTaskCount = errors.New("expected task count configured twice")
)

// CountSource provides the expected number of tasks for a Progress.
//
// A Progress is itself a CountSource: its projected total work serves as
// the expected task count of another Progress, which is how estimates
// compose recursively across nesting levels (projects -> files -> bytes).
type CountSource interface {
	ExpectedTasks() (int64, bool)
}

type fixedCount int64

func (c fixedCount) ExpectedTasks() (int64, bool) { return int64(c), true }

type config struct {
	fixed     int64
	fixedSet  bool
	source    CountSource
	sourceSet bool
	renderer  Renderer
	label     string
}

// Option configures a Progress.
type Option func(*config)

// WithExpectedTasks sets a literal expected task count.
func WithExpectedTasks(n int64) Option {
	return func(c *config) {
		c.fixed = n
		c.fixedSet = true
	}
}

// WithTaskCountSource makes the expected task count track another
// Progress's live projection (or any other CountSource).
func WithTaskCountSource(src CountSource) Option {
	return func(c *config) {
		c.source = src
		c.sourceSet = true
	}
}

// WithRenderer attaches a display sink receiving row notifications.
func WithRenderer(r Renderer) Option {
	return func(c *config) { c.renderer = r }
}

// WithLabel creates an aggregate display row with the given label.
// It has no effect without a renderer.
func WithLabel(label string) Option {
	return func(c *config) { c.label = label }
}

// Progress holds the set of currently active tasks, aggregates completed
// work and projects the total expected work even when the total number of
// tasks is not known upfront.
//
// A single mutex guards all mutable state, so concurrent updates from many
// callers -- threads or remote workers -- against one Progress serialize.
type Progress struct {
	mu sync.Mutex

	source   CountSource
	renderer Renderer

	overallRow    RowID
	hasOverallRow bool

	active         []*Task
	tasksCompleted int64
	tasksCancelled int64
	workCompleted  WorkAmount

	onStop  []func()
	stopped bool
}

// New creates a Progress. Without WithExpectedTasks or WithTaskCountSource
// the expected task count is unknown until tasks are observed.
func New(opts ...Option) (*Progress, error) {
	var cfg config

	for _, o := range opts {
		o(&cfg)
	}

	if cfg.fixedSet && cfg.sourceSet {
		return nil, ErrConflictingTaskCount
	}
	if cfg.fixedSet && cfg.fixed < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeTaskCount, cfg.fixed)
	}

	var src CountSource

	switch {
	case cfg.fixedSet:
		src = fixedCount(cfg.fixed)
	case cfg.sourceSet:
		src = cfg.source
	}

	p := &Progress{
		source:   src,
		renderer: cfg.renderer,
	}

	if cfg.renderer != nil && cfg.label != "" {
		p.overallRow = cfg.renderer.AddRow(cfg.label, TotalUnknown)
		p.hasOverallRow = true
	}

	return p, nil
}

type taskConfig struct {
	label     string
	transient bool
}

// TaskOption configures a task created by AddTask.
type TaskOption func(*taskConfig)

// TaskLabel creates a per-task display row with the given label
// (only with a renderer attached to the owner).
func TaskLabel(label string) TaskOption {
	return func(c *taskConfig) { c.label = label }
}

// KeepRow leaves the task's display row visible after a normal stop
// instead of removing it.
func KeepRow() TaskOption {
	return func(c *taskConfig) { c.transient = false }
}

// AddTask creates a task with a known expected amount of work, registers
// it in the active set and triggers a recompute. A negative expected
// amount is treated as unknown.
func (p *Progress) AddTask(expected WorkAmount, opts ...TaskOption) *Task {
	return p.addTask(expected, expected >= 0, opts)
}

// AddTaskUnknown creates a task whose expected amount of work is not
// known yet. It does not contribute to the projection until either its
// expected amount is set or it completes.
func (p *Progress) AddTaskUnknown(opts ...TaskOption) *Task {
	return p.addTask(0, false, opts)
}

func (p *Progress) addTask(expected WorkAmount, known bool, opts []TaskOption) *Task {
	cfg := taskConfig{transient: true}

	for _, o := range opts {
		o(&cfg)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	t := &Task{
		owner:         p,
		label:         cfg.label,
		transient:     cfg.transient,
		expected:      expected,
		expectedKnown: known,
	}

	if p.renderer != nil && cfg.label != "" {
		total := TotalUnknown
		if known {
			total = expected
		}

		t.row = p.renderer.AddRow(cfg.label, total)
		t.hasRow = true
	}

	p.active = append(p.active, t)
	p.notifyLocked(t)

	return t
}

// AddCancelledTask records a pre-cancelled unit of work without ever
// materializing a Task.
func (p *Progress) AddCancelledTask() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tasksCancelled++
	p.notifyLocked(nil)
}

// Start makes the aggregate display row visible.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasOverallRow {
		p.renderer.StartRow(p.overallRow)
	}
}

// Stop force-cancels all remaining active tasks, finalizes the aggregate
// display row and fires the stop callbacks. Repeated calls are no-ops.
func (p *Progress) Stop() {
	p.mu.Lock()

	if p.stopped {
		p.mu.Unlock()

		return
	}
	p.stopped = true

	var fired []func()

	for _, t := range slices.Clone(p.active) {
		fired = append(fired, p.stopTaskLocked(t, true)...)
	}

	if p.hasOverallRow {
		p.renderer.StopRow(p.overallRow)
	}

	hooks := p.onStop
	p.onStop = nil

	p.mu.Unlock()

	// Callbacks run unlocked: they may reach back into shared
	// infrastructure such as a registry.
	for _, f := range fired {
		f()
	}
	for _, f := range hooks {
		f()
	}
}

// OnStop registers a callback fired exactly once when the Progress stops.
// If it is already stopped, f runs immediately.
func (p *Progress) OnStop(f func()) {
	p.mu.Lock()

	if p.stopped {
		p.mu.Unlock()
		f()

		return
	}

	p.onStop = append(p.onStop, f)

	p.mu.Unlock()
}

// WorkCompleted returns the permanently accumulated amount of work:
// the sum over all tasks that stopped non-cancelled. A still-active
// task's partial completion is not included.
func (p *Progress) WorkCompleted() WorkAmount {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.workCompleted
}

// WorkExpected projects the total expected work across all tasks,
// including not yet observed ones, by linear extrapolation: unseen tasks
// are assumed to average the same size as the known ones. The second
// return value is false while no projection is possible.
func (p *Progress) WorkExpected() (WorkAmount, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.workExpectedLocked()
}

func (p *Progress) workExpectedLocked() (WorkAmount, bool) {
	if p.source == nil {
		return 0, false
	}

	n, ok := p.source.ExpectedTasks()
	if !ok {
		return 0, false
	}

	// Cancelled tasks no longer contribute to the expected total
	n -= p.tasksCancelled

	known := p.tasksCompleted
	for _, t := range p.active {
		if t.expectedKnown {
			known++
		}
	}

	if known == 0 {
		// No sample to extrapolate from
		return 0, false
	}

	// Never project fewer tasks than are already observed
	if n < known {
		n = known
	}

	total := p.workCompleted
	for _, t := range p.active {
		if t.expectedKnown {
			total += t.expected
		}
	}

	return total * n / known, true
}

// ExpectedTasks implements CountSource: the projected total work of this
// Progress serves as the expected task count of an outer Progress.
func (p *Progress) ExpectedTasks() (int64, bool) {
	return p.WorkExpected()
}

// TasksCompleted returns the number of tasks that stopped non-cancelled.
func (p *Progress) TasksCompleted() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.tasksCompleted
}

// TasksCancelled returns the number of cancelled tasks, including those
// recorded with AddCancelledTask.
func (p *Progress) TasksCancelled() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.tasksCancelled
}

// ActiveTasks returns the number of currently active tasks.
func (p *Progress) ActiveTasks() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.active)
}

func (p *Progress) startTask(t *Task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t.state != StateCreated {
		return
	}
	t.state = StateStarted

	if t.hasRow {
		p.renderer.StartRow(t.row)
	}
}

func (p *Progress) updateTask(t *Task, delta WorkAmount) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t.state == StateStopped || t.state == StateCancelled {
		return
	}

	t.completed += delta
	p.notifyLocked(t)
}

func (p *Progress) updateTaskExpected(t *Task, expected WorkAmount) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t.state == StateStopped || t.state == StateCancelled {
		return
	}

	t.expected = expected
	t.expectedKnown = true
	p.notifyLocked(t)
}

func (p *Progress) stopTask(t *Task, cancelled bool) {
	p.mu.Lock()
	hooks := p.stopTaskLocked(t, cancelled)
	p.mu.Unlock()

	for _, f := range hooks {
		f()
	}
}

// stopTaskLocked removes t from the active set and finalizes it. It
// returns the task's stop callbacks to be fired after the lock is
// released. Calling it for an already removed task is a no-op.
func (p *Progress) stopTaskLocked(t *Task, cancelled bool) []func() {
	idx := slices.Index(p.active, t)
	if idx < 0 {
		// Already stopped via another path
		return nil
	}
	p.active = slices.Delete(p.active, idx, idx+1)

	if cancelled {
		t.state = StateCancelled
		p.tasksCancelled++
	} else {
		t.state = StateStopped
		p.tasksCompleted++
		p.workCompleted += t.completed
	}

	if t.hasRow {
		if t.transient {
			p.renderer.RemoveRow(t.row)
		} else {
			p.renderer.StopRow(t.row)
		}
	}

	p.notifyLocked(nil)

	hooks := t.onStop
	t.onStop = nil

	return hooks
}

// notifyLocked pushes the current numbers to the renderer. The visible
// overall total includes the partial completion of active tasks, which
// only becomes permanent once a task stops non-cancelled.
func (p *Progress) notifyLocked(t *Task) {
	if p.renderer == nil {
		return
	}

	if t != nil && t.hasRow {
		total := TotalUnknown
		if t.expectedKnown {
			total = t.expected
		}

		p.renderer.UpdateRow(t.row, t.completed, total)
	}

	if p.hasOverallRow {
		completed := p.workCompleted
		for _, a := range p.active {
			completed += a.completed
		}

		total := TotalUnknown
		if v, ok := p.workExpectedLocked(); ok {
			total = v
		}

		p.renderer.UpdateRow(p.overallRow, completed, total)
	}
}
