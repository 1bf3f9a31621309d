package fs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

func nextEvent(t *testing.T, ch <-chan core.Event) core.Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
		return core.Event{}
	}
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := NewRepository(Config{Path: t.TempDir(), Gitless: true})
	if err := repo.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateDocument(ctx, "alice", "letters", "Letters", ""); err != nil {
		t.Fatal(err)
	}

	events, err := repo.Watch(ctx, "alice")
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	waitForWatchers(t, repo, 1)

	if err := repo.SaveDocument(ctx, "alice", "letters", "# Alpha\n"); err != nil {
		t.Fatal(err)
	}
	e := nextEvent(t, events)
	if e.ID != "letters" || e.Type == core.EventDelete {
		t.Errorf("unexpected event after save: %v", e)
	}

	dir := filepath.Join(repo.Path, "alice")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "letters.cnl")); err != nil {
		t.Fatal(err)
	}
	e = nextEvent(t, events)
	if e.ID != "letters" || e.Type != core.EventDelete {
		t.Errorf("expected delete of letters, got %v", e)
	}

	cancel()
	select {
	case _, ok := <-events:
		if ok {
			for range events {
			}
		}
	case <-time.After(6 * time.Second):
		t.Fatal("event channel not closed after cancel")
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)

	var mu sync.Mutex
	var got []core.Event
	record := func(e core.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	}

	d.add(core.Event{Type: core.EventCreate, ID: "a"}, record)
	d.add(core.Event{Type: core.EventModify, ID: "a"}, record)
	d.add(core.Event{Type: core.EventModify, ID: "a"}, record)
	d.add(core.Event{Type: core.EventDelete, ID: "b"}, record)
	d.add(core.Event{Type: core.EventCreate, ID: "b"}, record)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	d.stopAndWait(time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 coalesced events, got %v", got)
	}
	types := map[string]core.EventType{}
	for _, e := range got {
		types[e.ID] = e.Type
	}
	if types["a"] != core.EventCreate {
		t.Errorf("create followed by writes should stay a create, got %s", types["a"])
	}
	if types["b"] != core.EventModify {
		t.Errorf("delete followed by create should be a modify, got %s", types["b"])
	}
}

func TestDebouncerStopDropsPending(t *testing.T) {
	d := newDebouncer(time.Hour)
	called := false
	d.add(core.Event{Type: core.EventModify, ID: "a"}, func(core.Event) { called = true })
	d.stopAndWait(time.Second)
	d.add(core.Event{Type: core.EventModify, ID: "b"}, func(core.Event) { called = true })
	if called {
		t.Error("no callback may run after stop")
	}
}
