package drawer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/wizards/internal/logging"
	"github.com/aretw0/wizards/pkg/adapters/memory"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/aretw0/wizards/pkg/drawer"

// scope groups the fetches issued for one generation of an interaction.
// Replacing the interaction cancels the scope.
type scope struct {
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
}

// Drawer is a single open query-assist drawer.
// All methods are safe for concurrent use.
type Drawer struct {
	id        string
	service   ports.SuggestionService
	prefs     ports.PreferenceStore
	templates ports.TemplateSource
	snapshots ports.SnapshotStore

	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	tracer       trace.Tracer
	fetchTimeout time.Duration

	mu      sync.Mutex
	idle    *sync.Cond
	state   domain.State
	closed  bool
	pending int

	ctx    context.Context
	cancel context.CancelFunc
	scopes map[int]*scope

	// fetching maps an interaction index to the generation of its running
	// suggestion fetch.
	fetching map[int]uint64

	explain singleflight.Group

	watchers  map[int]chan *domain.StateDiff
	nextWatch int
}

// Open creates a drawer for query. The starting message is shown unless the
// SKIP_STARTING_MESSAGE preference is set, which also seeds the checkbox.
func Open(ctx context.Context, id string, query domain.Query, service ports.SuggestionService, opts ...Option) (*Drawer, error) {
	d := newDrawer(id, service, opts...)

	skip, err := d.prefs.GetBool(ctx, domain.KeySkipStartingMessage, false)
	if err != nil {
		d.logger.Warn("Failed to read preference, showing starting message",
			"drawer_id", id,
			"key", domain.KeySkipStartingMessage,
			"err", err,
		)
		skip = false
	}
	d.state = domain.Initial(query, !skip)
	d.state.IndicateCheckbox = skip
	d.persist(ctx)

	d.logger.Debug("Drawer opened", "drawer_id", id, "show_starting_message", !skip)
	return d, nil
}

// Restore recreates a drawer from a snapshot. Fetches that were outstanding
// when the snapshot was taken are marked as interrupted failures so they can
// be retried.
func Restore(ctx context.Context, id string, snapshot domain.State, service ports.SuggestionService, opts ...Option) (*Drawer, error) {
	d := newDrawer(id, service, opts...)
	d.state = snapshot.Interrupted()
	d.persist(ctx)

	d.logger.Debug("Drawer restored", "drawer_id", id, "interactions", len(d.state.Interactions))
	return d, nil
}

func newDrawer(id string, service ports.SuggestionService, opts ...Option) *Drawer {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Drawer{
		id:           id,
		service:      service,
		logger:       logging.NewNop(),
		fetchTimeout: DefaultFetchTimeout,
		ctx:          ctx,
		cancel:       cancel,
		scopes:       make(map[int]*scope),
		fetching:     make(map[int]uint64),
		watchers:     make(map[int]chan *domain.StateDiff),
	}
	d.idle = sync.NewCond(&d.mu)
	for _, opt := range opts {
		opt(d)
	}
	if d.prefs == nil {
		d.prefs = memory.NewPreferenceStore()
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d
}

// ID returns the drawer identifier.
func (d *Drawer) ID() string {
	return d.id
}

// State returns a copy of the current state.
func (d *Drawer) State() domain.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

// Dispatch applies a single action and returns the resulting state.
// On error the state is left unchanged.
func (d *Drawer) Dispatch(ctx context.Context, action domain.Action) (domain.State, error) {
	d.mu.Lock()
	next, err := d.dispatchLocked(ctx, action)
	d.mu.Unlock()

	d.emitDispatch(ctx, action, err)
	return next, err
}

// dispatchLocked must be called with d.mu held.
func (d *Drawer) dispatchLocked(ctx context.Context, action domain.Action) (domain.State, error) {
	if d.closed {
		return d.state.Clone(), domain.ErrDrawerClosed
	}

	prev := d.state
	next, err := domain.Reduce(prev, action)
	if err != nil {
		return prev.Clone(), err
	}

	if upd, ok := action.(domain.UpdateInteractionAt); ok {
		d.retireScope(upd.Index, prev.Interactions[upd.Index], next.Interactions[upd.Index])
	}

	d.state = next
	d.publish(&prev, &next)
	d.persist(ctx)
	return next.Clone(), nil
}

// update reads the interaction at index, transforms it and dispatches the
// replacement, all under one lock.
func (d *Drawer) update(ctx context.Context, index int, fn func(domain.Interaction) (domain.Interaction, error)) (domain.Interaction, error) {
	d.mu.Lock()
	cur, ok := d.state.At(index)
	if !ok {
		d.mu.Unlock()
		return domain.Interaction{}, fmt.Errorf("%w: %d (have %d)", domain.ErrInvalidIndex, index, len(d.state.Interactions))
	}
	if d.closed {
		d.mu.Unlock()
		return domain.Interaction{}, domain.ErrDrawerClosed
	}
	repl, err := fn(cur.Clone())
	if err != nil {
		d.mu.Unlock()
		return domain.Interaction{}, err
	}
	action := domain.UpdateInteractionAt{Index: index, Interaction: repl}
	_, err = d.dispatchLocked(ctx, action)
	d.mu.Unlock()

	d.emitDispatch(ctx, action, err)
	return repl, err
}

// retireScope cancels in-flight fetches of an interaction that was replaced
// by one they no longer apply to.
func (d *Drawer) retireScope(index int, prev, next domain.Interaction) {
	sc, ok := d.scopes[index]
	if !ok {
		return
	}
	if next.Generation == sc.generation && next.SuggestionType == prev.SuggestionType {
		return
	}
	sc.cancel()
	delete(d.scopes, index)
	d.logger.Debug("Canceled fetches for replaced interaction",
		"drawer_id", d.id,
		"index", index,
		"generation", sc.generation,
	)
}

// scopeFor returns the fetch scope for the given interaction generation,
// creating it on first use. Must be called with d.mu held.
func (d *Drawer) scopeFor(index int, generation uint64) *scope {
	if sc, ok := d.scopes[index]; ok {
		if sc.generation == generation {
			return sc
		}
		sc.cancel()
	}
	ctx, cancel := context.WithCancel(d.ctx)
	sc := &scope{generation: generation, ctx: ctx, cancel: cancel}
	d.scopes[index] = sc
	return sc
}

func (d *Drawer) persist(ctx context.Context) {
	if d.snapshots == nil {
		return
	}
	snapshot := d.state.Clone()
	if err := d.snapshots.Save(context.WithoutCancel(ctx), d.id, &snapshot); err != nil {
		d.logger.Warn("Failed to persist drawer snapshot",
			"drawer_id", d.id,
			"err", err,
		)
	}
}

// Watch subscribes to state diffs. The first value describes the whole
// current state. The channel is closed by the returned cancel function or
// when the drawer closes. Slow subscribers miss diffs rather than block the
// drawer.
func (d *Drawer) Watch() (<-chan *domain.StateDiff, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan *domain.StateDiff, DefaultWatchBuffer)
	if d.closed {
		close(ch)
		return ch, func() {}
	}

	id := d.nextWatch
	d.nextWatch++
	d.watchers[id] = ch
	cur := d.state.Clone()
	ch <- domain.Diff(d.id, nil, &cur)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			if w, ok := d.watchers[id]; ok {
				delete(d.watchers, id)
				close(w)
			}
		})
	}
}

// publish must be called with d.mu held.
func (d *Drawer) publish(prev, next *domain.State) {
	if len(d.watchers) == 0 {
		return
	}
	diff := domain.Diff(d.id, prev, next)
	if diff == nil {
		return
	}
	for id, ch := range d.watchers {
		select {
		case ch <- diff:
		default:
			d.logger.Warn("Dropping diff for slow watcher", "drawer_id", d.id, "watcher", id)
		}
	}
}

// Wait blocks until no fetch is outstanding.
func (d *Drawer) Wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.pending > 0 {
		d.idle.Wait()
	}
}

// Close cancels every in-flight fetch, waits for them to return and releases
// the watchers. Further calls return domain.ErrDrawerClosed.
func (d *Drawer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.cancel()
	d.scopes = make(map[int]*scope)
	for id, ch := range d.watchers {
		delete(d.watchers, id)
		close(ch)
	}
	for d.pending > 0 {
		d.idle.Wait()
	}
	d.mu.Unlock()

	d.logger.Debug("Drawer closed", "drawer_id", d.id)
	return nil
}

// Closed reports whether Close was called.
func (d *Drawer) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Drawer) emitDispatch(ctx context.Context, action domain.Action, err error) {
	name := "<nil>"
	if action != nil {
		name = action.Name()
	}
	switch {
	case err == nil:
		d.logger.Debug("Action dispatched", "drawer_id", d.id, "action", name)
	case errors.Is(err, domain.ErrStaleUpdate):
		d.logger.Debug("Discarded stale update", "drawer_id", d.id, "action", name, "err", err)
	default:
		d.logger.Info("Action rejected", "drawer_id", d.id, "action", name, "err", err)
	}

	if d.hooks.OnDispatch != nil {
		d.hooks.OnDispatch(ctx, &domain.DispatchEvent{
			EventBase: domain.EventBase{
				Timestamp: time.Now(),
				Type:      domain.EventDispatch,
				SessionID: d.id,
			},
			Action: name,
			Err:    err,
		})
	}
}
