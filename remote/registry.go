package remote

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"

	"github.com/moi90/richer-progress/progress"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyRegistered = errors.New("object is already registered")
	ErrUnsupportedObject = errors.New("only tasks and progresses can be published")
	ErrKindMismatch      = errors.New("object kind mismatch")
)

// LookupError is returned when an id is not (or no longer) present in the
// registry, e.g. after a premature unregistration or from a stale handle.
// It carries the currently known ids for diagnosis.
type LookupError struct {
	ID    string
	Known []string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unknown object id %q (known ids: %v)", e.ID, e.Known)
}

// Kind discriminates the two publishable object types.
type Kind string

const (
	KindTask     Kind = "task"
	KindProgress Kind = "progress"
)

type entry struct {
	kind Kind
	obj  any
}

func newEntry(obj any) (*entry, error) {
	switch obj.(type) {
	case *progress.Task:
		return &entry{kind: KindTask, obj: obj}, nil
	case *progress.Progress:
		return &entry{kind: KindProgress, obj: obj}, nil
	}

	return nil, fmt.Errorf("%w: got %T", ErrUnsupportedObject, obj)
}

func (e *entry) task() (*progress.Task, error) {
	t, ok := e.obj.(*progress.Task)
	if !ok {
		return nil, fmt.Errorf("%w: object is a %s, not a %s", ErrKindMismatch, e.kind, KindTask)
	}

	return t, nil
}

func (e *entry) prog() (*progress.Progress, error) {
	p, ok := e.obj.(*progress.Progress)
	if !ok {
		return nil, fmt.Errorf("%w: object is a %s, not a %s", ErrKindMismatch, e.kind, KindProgress)
	}

	return p, nil
}

// Registry publishes live Task and Progress objects for remote access over
// a long-lived JSON-RPC endpoint served from a background goroutine.
//
// Possession of the endpoint address plus the shared secret grants full
// publish/resolve access; there is no finer-grained authorization.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	ids     map[any]string

	addr   string
	secret string

	pid      int
	forkWarn sync.Once

	srv   *http.Server
	group *errgroup.Group
}

// Register publishes obj under a fresh unguessable id. Registering the
// identical object twice is a usage error.
func (r *Registry) Register(obj any) (string, error) {
	e, err := newEntry(obj)
	if err != nil {
		return "", err
	}

	r.warnIfForked()

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, found := r.ids[obj]; found {
		return "", fmt.Errorf("%w: id %s", ErrAlreadyRegistered, id)
	}

	id := uuid.NewString()

	r.entries[id] = e
	r.ids[obj] = id

	log.WithFields(log.Fields{"object-id": id, "object-kind": e.kind}).Debug("registered object")

	return id, nil
}

// Unregister removes the mapping for id. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.warnIfForked()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, found := r.entries[id]
	if !found {
		return
	}

	delete(r.entries, id)
	delete(r.ids, e.obj)

	log.WithFields(log.Fields{"object-id": id}).Debug("unregistered object")
}

// Len returns the number of currently registered objects.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.warnIfForked()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, found := r.entries[id]
	if !found {
		known := make([]string, 0, len(r.entries))
		for k := range r.entries {
			known = append(known, k)
		}
		sort.Strings(known)

		return nil, &LookupError{ID: id, Known: known}
	}

	return e, nil
}

// Publish returns a serializable handle for obj, registering it first if
// needed. A newly registered object gets a stop callback that removes its
// registry entry, so entries never outlive the object's lifecycle.
func (r *Registry) Publish(obj any) (Handle, error) {
	e, err := newEntry(obj)
	if err != nil {
		return Handle{}, err
	}

	r.warnIfForked()

	r.mu.Lock()

	id, found := r.ids[obj]
	if !found {
		id = uuid.NewString()

		r.entries[id] = e
		r.ids[obj] = id

		log.WithFields(log.Fields{"object-id": id, "object-kind": e.kind}).Debug("published object")
	}

	r.mu.Unlock()

	if !found {
		unregister := func() { r.Unregister(id) }

		switch o := obj.(type) {
		case *progress.Task:
			o.OnStop(unregister)
		case *progress.Progress:
			o.OnStop(unregister)
		}
	}

	return Handle{Addr: r.addr, Secret: r.secret, ID: id, Kind: e.kind}, nil
}

// Addr returns the endpoint address of the registry.
func (r *Registry) Addr() string {
	return r.addr
}

// Secret returns the shared secret granting access to the endpoint.
func (r *Registry) Secret() string {
	r.warnIfForked()

	return r.secret
}

// warnIfForked detects a duplicated process image: the background goroutine
// serving the endpoint does not exist in a forked copy, so handles created
// there can never be resolved. Workers must be started from scratch.
func (r *Registry) warnIfForked() {
	if os.Getpid() == r.pid {
		return
	}

	r.forkWarn.Do(func() {
		log.WithFields(log.Fields{
			"registry-pid": r.pid,
			"current-pid":  os.Getpid(),
		}).Warn("registry used in a duplicated process: the serving goroutine does not exist here, start workers from scratch instead")
	})
}
