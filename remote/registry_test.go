package remote

import (
	"errors"
	"testing"

	"github.com/moi90/richer-progress/progress"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %s", err)
	}

	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("Close: %s", err)
		}
	})

	return r
}

func newTestProgress(t *testing.T) *progress.Progress {
	t.Helper()

	p, err := progress.New(progress.WithExpectedTasks(1))
	if err != nil {
		t.Fatalf("progress.New: %s", err)
	}

	return p
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := newTestRegistry(t)
	p := newTestProgress(t)

	if _, err := r.Register(p); err != nil {
		t.Fatalf("first registration failed: %s", err)
	}

	if _, err := r.Register(p); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("got %v instead of a double-registration error", err)
	}
}

func TestRegisterRejectsForeignObjects(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Register(42); !errors.Is(err, ErrUnsupportedObject) {
		t.Fatalf("got %v instead of an unsupported-object error", err)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	p := newTestProgress(t)

	id, err := r.Register(p)
	if err != nil {
		t.Fatalf("Register: %s", err)
	}

	r.Unregister(id)
	r.Unregister(id)
	r.Unregister("no-such-id")

	if n := r.Len(); n != 0 {
		t.Fatalf("registry still holds %d entries", n)
	}
}

func TestLookupErrorCarriesKnownIds(t *testing.T) {
	r := newTestRegistry(t)
	p := newTestProgress(t)

	id, err := r.Register(p)
	if err != nil {
		t.Fatalf("Register: %s", err)
	}

	_, err = r.lookup("stale-id")

	var lerr *LookupError

	if !errors.As(err, &lerr) {
		t.Fatalf("got %v instead of a lookup error", err)
	}

	if lerr.ID != "stale-id" {
		t.Fatalf("lookup error reports id %q", lerr.ID)
	}
	if len(lerr.Known) != 1 || lerr.Known[0] != id {
		t.Fatalf("lookup error reports known ids %v instead of [%s]", lerr.Known, id)
	}
}

func TestPublishReusesExistingId(t *testing.T) {
	r := newTestRegistry(t)
	p := newTestProgress(t)

	h1, err := r.Publish(p)
	if err != nil {
		t.Fatalf("Publish: %s", err)
	}

	h2, err := r.Publish(p)
	if err != nil {
		t.Fatalf("Publish: %s", err)
	}

	if h1.ID != h2.ID {
		t.Fatalf("publishing twice produced ids %s and %s", h1.ID, h2.ID)
	}
	if h1.Kind != KindProgress {
		t.Fatalf("got kind %s instead of %s", h1.Kind, KindProgress)
	}
	if h1.Addr != r.Addr() || h1.Secret != r.Secret() {
		t.Fatalf("handle does not carry the registry credentials")
	}

	if n := r.Len(); n != 1 {
		t.Fatalf("registry holds %d entries instead of 1", n)
	}
}

func TestStoppedObjectsLeaveTheRegistry(t *testing.T) {
	r := newTestRegistry(t)
	p := newTestProgress(t)

	task := p.AddTask(10)

	if _, err := r.Publish(task); err != nil {
		t.Fatalf("Publish task: %s", err)
	}
	if _, err := r.Publish(p); err != nil {
		t.Fatalf("Publish progress: %s", err)
	}

	if n := r.Len(); n != 2 {
		t.Fatalf("registry holds %d entries instead of 2", n)
	}

	task.Stop()

	if n := r.Len(); n != 1 {
		t.Fatalf("registry holds %d entries after the task stopped", n)
	}

	p.Stop()

	if n := r.Len(); n != 0 {
		t.Fatalf("registry holds %d entries after the progress stopped", n)
	}
}

func TestHandleRedaction(t *testing.T) {
	h := Handle{Addr: "127.0.0.1:1", Secret: "s3cret", ID: "abc", Kind: KindTask}

	if r := h.Redacted(); r.Secret != "" || r.ID != h.ID {
		t.Fatalf("redaction mangled the handle: %+v", r)
	}

	t.Setenv(AuthKeyEnv, "s3cret")

	filled, err := h.Redacted().WithSecretFromEnv()
	if err != nil {
		t.Fatalf("WithSecretFromEnv: %s", err)
	}
	if filled.Secret != "s3cret" {
		t.Fatalf("got secret %q", filled.Secret)
	}

	t.Setenv(AuthKeyEnv, "")

	if _, err := h.Redacted().WithSecretFromEnv(); !errors.Is(err, ErrNoAuthKey) {
		t.Fatalf("got %v instead of a missing-authkey error", err)
	}
}
