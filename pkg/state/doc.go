// Package state defines persistence-facing contracts for loading and saving
// dashboard documents, plus a small repository that wraps a Store with
// optimistic concurrency and validation.
//
// Responsibilities:
//   - Store[T] only loads/saves a single snapshot for a single Ref.
//   - Repository[T] loads, mutates, validates and saves one snapshot, checking
//     the caller's ETag against the stored one before writing.
//   - Every save through a Repository gets a fresh snapshot id, so callers can
//     tell revisions apart in logs and activity events.
//
// Data flow:
//
//	Store.Load -> Mutator -> Validate -> Store.Save
//
// Deterministic keys:
//
//	Ref.Identifier() provides a canonical storage key of the form
//	`<domain>/<org>/<uid>` (or `<domain>/<uid>` without an org).
package state
