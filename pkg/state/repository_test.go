package state_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-templating/pkg/state"
)

type board struct {
	Title     string
	Variables []string
}

var errTitleRequired = errors.New("title is required")

func validateBoard(b board) error {
	if b.Title == "" {
		return errTitleRequired
	}
	return nil
}

func newRepository() (state.Repository[board], *state.MemoryStore[board]) {
	store := state.NewMemoryStore[board]()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return state.Repository[board]{
		Store:    store,
		Validate: validateBoard,
		Now:      func() time.Time { return fixed },
	}, store
}

var opsRef = state.Ref{Domain: "dashboards", Org: "acme", UID: "ops"}

func TestRepositoryGetNotFound(t *testing.T) {
	repo, _ := newRepository()
	_, _, err := repo.Get(context.Background(), opsRef)
	if !errors.Is(err, state.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryMutateCreatesAndUpdates(t *testing.T) {
	repo, _ := newRepository()

	created, meta, err := repo.Mutate(context.Background(), opsRef, state.Meta{}, func(b *board) error {
		b.Title = "Ops"
		return nil
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Title != "Ops" || meta.ETag != "1" {
		t.Fatalf("unexpected create result %+v %+v", created, meta)
	}
	if _, err := uuid.Parse(meta.SnapshotID); err != nil {
		t.Fatalf("expected uuid snapshot id, got %q", meta.SnapshotID)
	}
	if !meta.UpdatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("expected injected clock, got %v", meta.UpdatedAt)
	}

	_, next, err := repo.Mutate(context.Background(), opsRef, state.Meta{ETag: meta.ETag}, func(b *board) error {
		b.Variables = append(b.Variables, "host")
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if next.ETag != "2" || next.SnapshotID == meta.SnapshotID {
		t.Fatalf("expected new revision and snapshot id, got %+v", next)
	}

	got, _, err := repo.Get(context.Background(), opsRef)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Ops" || len(got.Variables) != 1 {
		t.Fatalf("unexpected stored board %+v", got)
	}
}

func TestRepositoryMutateETagMismatch(t *testing.T) {
	repo, _ := newRepository()
	if _, _, err := repo.Mutate(context.Background(), opsRef, state.Meta{}, func(b *board) error {
		b.Title = "Ops"
		return nil
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	called := false
	_, _, err := repo.Mutate(context.Background(), opsRef, state.Meta{ETag: "7"}, func(b *board) error {
		called = true
		return nil
	})
	if !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
	if called {
		t.Fatalf("expected mutator not to run on mismatch")
	}
}

func TestRepositoryMutateValidationBlocksSave(t *testing.T) {
	repo, store := newRepository()
	_, _, err := repo.Mutate(context.Background(), opsRef, state.Meta{}, func(b *board) error {
		return nil
	})
	if !errors.Is(err, errTitleRequired) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, _, ok, _ := store.Load(context.Background(), opsRef); ok {
		t.Fatalf("expected nothing saved")
	}
}

func TestRepositoryMutateRequiresInputs(t *testing.T) {
	repo, _ := newRepository()
	noop := func(*board) error { return nil }
	if _, _, err := repo.Mutate(context.Background(), state.Ref{Domain: "dashboards"}, state.Meta{}, noop); err == nil {
		t.Fatalf("expected uid required")
	}
	if _, _, err := repo.Mutate(context.Background(), opsRef, state.Meta{}, nil); err == nil {
		t.Fatalf("expected mutator required")
	}
	if _, _, err := (state.Repository[board]{}).Get(context.Background(), opsRef); err == nil {
		t.Fatalf("expected store required")
	}
}

// racingStore holds the first `writers` loads until all of them have read,
// so every writer mutates the same revision.
type racingStore struct {
	*state.MemoryStore[board]
	writers int32
	loads   atomic.Int32
	gate    sync.WaitGroup
}

func newRacingStore(writers int) *racingStore {
	s := &racingStore{MemoryStore: state.NewMemoryStore[board](), writers: int32(writers)}
	s.gate.Add(writers)
	return s
}

func (s *racingStore) Load(ctx context.Context, ref state.Ref) (board, state.Meta, bool, error) {
	snapshot, meta, ok, err := s.MemoryStore.Load(ctx, ref)
	if s.loads.Add(1) <= s.writers {
		s.gate.Done()
		s.gate.Wait()
	}
	return snapshot, meta, ok, err
}

func seedRacingRepository(t *testing.T, writers int) state.Repository[board] {
	t.Helper()
	store := newRacingStore(writers)
	if _, err := store.Save(context.Background(), opsRef, board{Title: "Ops"}, state.Meta{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return state.Repository[board]{Store: store, Validate: validateBoard}
}

func TestRepositoryMutateConcurrentWritersWithSameETag(t *testing.T) {
	repo := seedRacingRepository(t, 2)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, name := range []string{"host", "region"} {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, _, errs[i] = repo.Mutate(context.Background(), opsRef, state.Meta{ETag: "1"}, func(b *board) error {
				b.Variables = append(b.Variables, name)
				return nil
			})
		}(i, name)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, state.ErrETagMismatch) {
			t.Fatalf("expected ErrETagMismatch, got %v", err)
		}
		failed++
	}
	if failed != 1 {
		t.Fatalf("expected exactly one writer rejected, got errors %v", errs)
	}

	got, meta, err := repo.Get(context.Background(), opsRef)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Variables) != 1 || meta.ETag != "2" {
		t.Fatalf("expected a single applied update, got %+v %+v", got, meta)
	}
}

func TestRepositoryMutateWithoutETagRetriesLostRace(t *testing.T) {
	repo := seedRacingRepository(t, 2)

	var wg sync.WaitGroup
	for _, name := range []string{"host", "region"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, _, err := repo.Mutate(context.Background(), opsRef, state.Meta{}, func(b *board) error {
				b.Variables = append(b.Variables, name)
				return nil
			}); err != nil {
				t.Errorf("mutate %s: %v", name, err)
			}
		}(name)
	}
	wg.Wait()

	got, meta, err := repo.Get(context.Background(), opsRef)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	sort.Strings(got.Variables)
	if len(got.Variables) != 2 || got.Variables[0] != "host" || got.Variables[1] != "region" {
		t.Fatalf("expected both updates kept, got %+v", got.Variables)
	}
	if meta.ETag != "3" {
		t.Fatalf("expected revision 3, got %q", meta.ETag)
	}
}
