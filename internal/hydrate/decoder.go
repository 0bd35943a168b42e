// Package hydrate turns stored dashboard payloads into typed documents.
//
// A Decoder works on a private copy of the payload: pre hooks rewrite the
// copy, the result is decoded through T's JSON unmarshalling, and post hooks
// adjust or validate the typed value.
package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Context identifies the dashboard a payload belongs to.
type Context struct {
	UID string
	Org string
}

// String returns org/uid, or uid alone outside an org.
func (c Context) String() string {
	if c.Org == "" {
		return c.UID
	}
	return c.Org + "/" + c.UID
}

func (c Context) wrap(step string, err error) error {
	return fmt.Errorf("hydrate: %s for dashboard %q: %w", step, c.String(), err)
}

// PreHook rewrites the payload copy. Returning a nil map keeps the input.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook adjusts or validates the decoded value.
type PostHook[T any] func(Context, *T) error

// Option configures a Decoder.
type Option[T any] func(*Decoder[T])

// WithPreHook appends hook to the hooks run before decoding.
func WithPreHook[T any](hook PreHook) Option[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

// WithPostHook appends hook to the hooks run after decoding.
func WithPostHook[T any](hook PostHook[T]) Option[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// Decoder converts payload maps into T.
type Decoder[T any] struct {
	pre  []PreHook
	post []PostHook[T]
}

func NewDecoder[T any](opts ...Option[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

var errNilPayload = errors.New("payload is nil")

// Decode runs the hooks around the JSON decode of payload. payload itself is
// never modified.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var out T
	if payload == nil {
		return out, ctx.wrap("decode", errNilPayload)
	}

	working, err := reencode[map[string]any](payload)
	if err != nil {
		return out, ctx.wrap("copy payload", err)
	}
	for i, hook := range d.pre {
		next, err := hook(ctx, working)
		if err != nil {
			return out, ctx.wrap(fmt.Sprintf("pre-hook %d", i), err)
		}
		if next != nil {
			working = next
		}
	}

	if out, err = reencode[T](working); err != nil {
		var zero T
		return zero, ctx.wrap("decode", err)
	}
	for i, hook := range d.post {
		if err := hook(ctx, &out); err != nil {
			var zero T
			return zero, ctx.wrap(fmt.Sprintf("post-hook %d", i), err)
		}
	}
	return out, nil
}

// reencode converts in to T through its JSON form.
func reencode[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
