package inflight

import (
	"context"
	"testing"
)

func TestMemoryGuardAcquireRelease(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	release, ok, err := g.TryAcquire(ctx, "explain:s1")
	if err != nil || !ok {
		t.Fatalf("first TryAcquire: ok=%v err=%v", ok, err)
	}

	// Same key is busy, other keys are not.
	if _, ok, _ := g.TryAcquire(ctx, "explain:s1"); ok {
		t.Error("second TryAcquire on held key succeeded")
	}
	release2, ok, _ := g.TryAcquire(ctx, "art:s1")
	if !ok {
		t.Error("different kind for same session should not be blocked")
	}
	release2()

	release()
	if _, ok, _ := g.TryAcquire(ctx, "explain:s1"); !ok {
		t.Error("key still busy after release")
	}
}

func TestMemoryGuardReleaseIsScoped(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	release, _, _ := g.TryAcquire(ctx, "narrate:s1")
	release()
	release() // double release must not panic or free someone else's claim

	r2, ok, _ := g.TryAcquire(ctx, "narrate:s1")
	if !ok {
		t.Fatal("key not acquirable after release")
	}
	release() // stale release while r2 holds the key
	if _, ok, _ := g.TryAcquire(ctx, "narrate:s1"); ok {
		t.Error("stale release freed a key held by a newer acquire")
	}
	r2()
}
