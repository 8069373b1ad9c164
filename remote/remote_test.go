package remote

import (
	"errors"
	"strings"
	"testing"
)

func TestTaskHandleRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	p := newTestProgress(t)

	task := p.AddTask(10)

	h, err := r.Publish(task)
	if err != nil {
		t.Fatalf("Publish: %s", err)
	}

	remote, err := ResolveTask(h)
	if err != nil {
		t.Fatalf("ResolveTask: %s", err)
	}

	if err := remote.Start(); err != nil {
		t.Fatalf("Start: %s", err)
	}
	if err := remote.Update(5); err != nil {
		t.Fatalf("Update: %s", err)
	}

	// Mutations through the stand-in are observed on the original object
	if v := task.Completed(); v != 5 {
		t.Fatalf("owner sees %d completed instead of 5", v)
	}

	if v, err := remote.Completed(); err != nil || v != 5 {
		t.Fatalf("stand-in sees (%d, %v) instead of (5, nil)", v, err)
	}
	if v, known, err := remote.Expected(); err != nil || !known || v != 10 {
		t.Fatalf("stand-in sees (%d, %v, %v) instead of (10, true, nil)", v, known, err)
	}

	if err := remote.UpdateExpected(20); err != nil {
		t.Fatalf("UpdateExpected: %s", err)
	}
	if v, ok := p.WorkExpected(); !ok || v != 20 {
		t.Fatalf("owner projects (%d, %v) instead of (20, true)", v, ok)
	}

	if err := remote.Stop(); err != nil {
		t.Fatalf("Stop: %s", err)
	}

	if v := p.WorkCompleted(); v != 5 {
		t.Fatalf("owner accumulated %d instead of 5", v)
	}
	if n := r.Len(); n != 0 {
		t.Fatalf("registry still holds %d entries", n)
	}

	// Duplicate stop paths must not fail on the already removed id
	if err := remote.Cancel(); err != nil {
		t.Fatalf("Cancel after Stop: %s", err)
	}
}

func TestTaskHandleRange(t *testing.T) {
	r := newTestRegistry(t)
	p := newTestProgress(t)

	task := p.AddTask(5)

	h, err := r.Publish(task)
	if err != nil {
		t.Fatalf("Publish: %s", err)
	}

	remote, err := ResolveTask(h)
	if err != nil {
		t.Fatalf("ResolveTask: %s", err)
	}

	var count int

	for range remote.Range(5) {
		count++
	}

	if err := remote.Err(); err != nil {
		t.Fatalf("Range: %s", err)
	}
	if count != 5 {
		t.Fatalf("yielded %d elements instead of 5", count)
	}
	if v := task.Completed(); v != 5 {
		t.Fatalf("owner sees %d completed instead of 5", v)
	}
}

func TestProgressHandleRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	p := newTestProgress(t)

	h, err := r.Publish(p)
	if err != nil {
		t.Fatalf("Publish: %s", err)
	}

	remote, err := ResolveProgress(h)
	if err != nil {
		t.Fatalf("ResolveProgress: %s", err)
	}

	task, err := remote.AddTask(5, "remote work")
	if err != nil {
		t.Fatalf("AddTask: %s", err)
	}

	if n := p.ActiveTasks(); n != 1 {
		t.Fatalf("owner has %d active tasks instead of 1", n)
	}

	if err := task.Update(5); err != nil {
		t.Fatalf("Update: %s", err)
	}
	if err := task.Stop(); err != nil {
		t.Fatalf("Stop: %s", err)
	}

	if v, err := remote.WorkCompleted(); err != nil || v != 5 {
		t.Fatalf("stand-in sees (%d, %v) instead of (5, nil)", v, err)
	}
	if v, known, err := remote.WorkExpected(); err != nil || !known || v != 5 {
		t.Fatalf("stand-in projects (%d, %v, %v) instead of (5, true, nil)", v, known, err)
	}

	if err := remote.AddCancelledTask(); err != nil {
		t.Fatalf("AddCancelledTask: %s", err)
	}
	if n := p.TasksCancelled(); n != 1 {
		t.Fatalf("owner counts %d cancelled tasks instead of 1", n)
	}

	if err := remote.Stop(); err != nil {
		t.Fatalf("Stop: %s", err)
	}
	if n := r.Len(); n != 0 {
		t.Fatalf("registry still holds %d entries", n)
	}
}

func TestResolveStaleHandle(t *testing.T) {
	r := newTestRegistry(t)
	p := newTestProgress(t)

	task := p.AddTask(1)

	h, err := r.Publish(task)
	if err != nil {
		t.Fatalf("Publish: %s", err)
	}

	r.Unregister(h.ID)

	_, err = ResolveTask(h)
	if err == nil {
		t.Fatalf("resolving a stale handle succeeded")
	}
	if !strings.Contains(err.Error(), "unknown object id") {
		t.Fatalf("got %q instead of a lookup failure", err)
	}
}

func TestResolveKindMismatch(t *testing.T) {
	r := newTestRegistry(t)
	p := newTestProgress(t)

	h, err := r.Publish(p)
	if err != nil {
		t.Fatalf("Publish: %s", err)
	}

	if _, err := ResolveTask(h); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("got %v instead of a kind mismatch", err)
	}
}

func TestWrongSecretIsRejected(t *testing.T) {
	r := newTestRegistry(t)
	p := newTestProgress(t)

	h, err := r.Publish(p)
	if err != nil {
		t.Fatalf("Publish: %s", err)
	}

	h.Secret = "wrong"

	_, err = ResolveProgress(h)
	if err == nil {
		t.Fatalf("resolving with a wrong secret succeeded")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("got %q instead of an unauthorized status", err)
	}
}

func TestDefaultRegistryLifecycle(t *testing.T) {
	if err := Reset(); err != nil {
		t.Fatalf("Reset: %s", err)
	}

	r1, err := Default()
	if err != nil {
		t.Fatalf("Default: %s", err)
	}

	r2, err := Default()
	if err != nil {
		t.Fatalf("Default: %s", err)
	}

	if r1 != r2 {
		t.Fatalf("Default returned two different registries")
	}

	if err := Reset(); err != nil {
		t.Fatalf("Reset: %s", err)
	}

	r3, err := Default()
	if err != nil {
		t.Fatalf("Default after Reset: %s", err)
	}

	if r3 == r1 {
		t.Fatalf("Reset did not replace the default registry")
	}
	if r3.Addr() == r1.Addr() && r3.Secret() == r1.Secret() {
		t.Fatalf("fresh registry reuses the old credentials")
	}

	if err := Shutdown(); err != nil {
		t.Fatalf("Shutdown: %s", err)
	}
	if err := Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %s", err)
	}
}
