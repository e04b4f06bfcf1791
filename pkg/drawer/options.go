package drawer

import (
	"log/slog"
	"time"

	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/ports"
	"go.opentelemetry.io/otel/trace"
)

// DefaultFetchTimeout bounds a single suggestion or explanation request.
const DefaultFetchTimeout = 60 * time.Second

// DefaultWatchBuffer is the channel capacity of Watch subscribers.
const DefaultWatchBuffer = 16

// Option defines a functional option for configuring a Drawer.
type Option func(*Drawer)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Drawer) {
		d.logger = logger
	}
}

// WithHooks registers lifecycle callbacks. Multiple calls are merged.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Drawer) {
		d.hooks = d.hooks.Merge(hooks)
	}
}

// WithPreferences configures the store holding SKIP_STARTING_MESSAGE.
// Without it, preferences live in memory for the life of the drawer.
func WithPreferences(prefs ports.PreferenceStore) Option {
	return func(d *Drawer) {
		d.prefs = prefs
	}
}

// WithTemplates configures the historical template source.
// Templates are handed to the suggestion service with every historical request.
func WithTemplates(source ports.TemplateSource) Option {
	return func(d *Drawer) {
		d.templates = source
	}
}

// WithSnapshotStore persists the state after every successful dispatch.
func WithSnapshotStore(store ports.SnapshotStore) Option {
	return func(d *Drawer) {
		d.snapshots = store
	}
}

// WithFetchTimeout bounds each fetch. Zero disables the timeout.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(d *Drawer) {
		d.fetchTimeout = timeout
	}
}

// WithTracer configures the tracer used for fetch spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Drawer) {
		d.tracer = tracer
	}
}
