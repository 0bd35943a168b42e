package activity

import (
	"context"
	"strings"
	"time"
)

// DefaultChannel is stamped on events that do not name a channel.
const DefaultChannel = "templating"

// Config controls activity emission defaults supplied by DI/config.
type Config struct {
	Enabled bool
	Channel string
	// Verbs limits emission to the listed verbs. Empty emits everything.
	Verbs []string
	// Now stamps OccurredAt on events that arrive without one.
	Now func() time.Time
}

// Emitter fans out templating events to hooks with the configured defaults.
type Emitter struct {
	hooks   Hooks
	channel string
	now     func() time.Time
}

// NewEmitter constructs an emitter. It is disabled when cfg.Enabled is false
// or no usable hook remains after nil hooks are dropped.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	var kept Hooks
	if cfg.Enabled {
		for _, hook := range hooks {
			if hook == nil {
				continue
			}
			if len(cfg.Verbs) > 0 {
				hook = OnlyVerbs(hook, cfg.Verbs...)
			}
			kept = append(kept, hook)
		}
	}
	return &Emitter{hooks: kept, channel: channel, now: now}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit forwards the event to every hook. Hook failures are aggregated and
// never roll back the change that produced the event.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now().UTC()
	}
	return e.hooks.Notify(ctx, event)
}
