package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("state: snapshot not found")

var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies one persisted snapshot in one domain.
type Ref struct {
	Domain string
	Org    string
	UID    string
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one snapshot for a single reference.
//
// Save must compare a non-empty meta.ETag with the stored ETag in the same
// critical section that writes the snapshot, failing with ErrETagMismatch
// when they differ. An empty meta.ETag saves unconditionally.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

type Mutator[T any] func(*T) error

// Identifier returns the storage key of r.
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	uid := strings.TrimSpace(r.UID)
	if domain == "" {
		return "", fmt.Errorf("missing domain for uid %q", uid)
	}
	if uid == "" {
		return "", fmt.Errorf("missing uid for domain %q", domain)
	}
	if strings.Contains(uid, "/") {
		return "", fmt.Errorf("invalid uid %q", uid)
	}
	if org := strings.TrimSpace(r.Org); org != "" {
		return fmt.Sprintf("%s/%s/%s", domain, org, uid), nil
	}
	return fmt.Sprintf("%s/%s", domain, uid), nil
}

// Repository wraps a Store with validation and ETag checks.
type Repository[T any] struct {
	Store Store[T]
	// Validate runs on the mutated snapshot before it is saved.
	Validate func(T) error
	// Now stamps Meta.UpdatedAt; time.Now when nil.
	Now func() time.Time
}

// Get loads the snapshot for ref, failing with ErrNotFound when absent.
func (r Repository[T]) Get(ctx context.Context, ref Ref) (T, Meta, error) {
	var zero T
	if r.Store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	snapshot, meta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q: %w", ref.UID, err)
	}
	if !ok {
		return zero, Meta{}, fmt.Errorf("%w: %s/%s", ErrNotFound, ref.Domain, ref.UID)
	}
	return snapshot, meta, nil
}

// mutateAttempts bounds how often Mutate reloads after losing a race when the
// caller did not pin an ETag.
const mutateAttempts = 3

// Mutate loads one snapshot, applies fn, validates, then saves. When meta
// carries an ETag it must match the stored one at save time. Without one,
// Mutate saves against the ETag it loaded and reapplies fn on a fresh load if
// another writer got there first. A missing snapshot starts from the zero
// value.
func (r Repository[T]) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if r.Store == nil {
		return zero, Meta{}, fmt.Errorf("state: store is required")
	}
	if ref.Domain == "" {
		return zero, Meta{}, fmt.Errorf("state: domain is required")
	}
	if ref.UID == "" {
		return zero, Meta{}, fmt.Errorf("state: uid is required")
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("state: mutator is required")
	}

	for attempt := 1; ; attempt++ {
		snapshot, saved, err := r.mutateOnce(ctx, ref, meta, fn)
		if err == nil || meta.ETag != "" || attempt == mutateAttempts || !errors.Is(err, ErrETagMismatch) {
			return snapshot, saved, err
		}
	}
}

func (r Repository[T]) mutateOnce(ctx context.Context, ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	snapshot, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q: %w", ref.UID, err)
	}
	if !ok {
		snapshot = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return zero, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return zero, loadedMeta, err
	}
	if r.Validate != nil {
		if err := r.Validate(snapshot); err != nil {
			return zero, loadedMeta, err
		}
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	saveMeta.SnapshotID = uuid.NewString()
	saveMeta.UpdatedAt = r.now()
	savedMeta, err := r.Store.Save(ctx, ref, snapshot, saveMeta)
	if err != nil {
		return zero, loadedMeta, fmt.Errorf("state: save %q: %w", ref.UID, err)
	}
	return snapshot, savedMeta, nil
}

func (r Repository[T]) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}
