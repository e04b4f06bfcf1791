package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/wizards/internal/logging"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/drawer"
	"github.com/aretw0/wizards/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed lock is held if never released.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager keeps the open drawers of a process. Drawers are addressed by a
// generated ID; with a snapshot store they can be restored after a restart.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	service ports.SuggestionService
	store   ports.SnapshotStore // Optional

	mu      sync.Mutex
	locks   map[string]*lockEntry
	drawers map[string]*drawer.Drawer

	locker     ports.DistributedLocker // Optional distributed locker
	lockTTL    time.Duration
	drawerOpts []drawer.Option
	newID      func() string
	logger     *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithSnapshotStore enables snapshot persistence and restore.
func WithSnapshotStore(store ports.SnapshotStore) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithLocker enables distributed locking around restore and delete.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithDrawerOptions are applied to every drawer the manager opens or restores.
func WithDrawerOptions(opts ...drawer.Option) Option {
	return func(m *Manager) {
		m.drawerOpts = append(m.drawerOpts, opts...)
	}
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session manager whose drawers use service.
func NewManager(service ports.SuggestionService, opts ...Option) *Manager {
	m := &Manager{
		service: service,
		locks:   make(map[string]*lockEntry),
		drawers: make(map[string]*drawer.Drawer),
		lockTTL: DefaultLockTTL,
		newID:   uuid.NewString,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

func (m *Manager) options() []drawer.Option {
	opts := make([]drawer.Option, 0, len(m.drawerOpts)+2)
	opts = append(opts, drawer.WithLogger(m.logger))
	opts = append(opts, m.drawerOpts...)
	if m.store != nil {
		opts = append(opts, drawer.WithSnapshotStore(m.store))
	}
	return opts
}

// Open creates a new drawer for query.
func (m *Manager) Open(ctx context.Context, query domain.Query) (*drawer.Drawer, error) {
	id := m.newID()
	var d *drawer.Drawer
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		d, err = drawer.Open(ctx, id, query, m.service, m.options()...)
		if err != nil {
			return fmt.Errorf("failed to open drawer: %w", err)
		}
		m.mu.Lock()
		m.drawers[id] = d
		m.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("Drawer opened", "drawer_id", id, "metric", query.Metric)
	return d, nil
}

// Get returns an open drawer, restoring it from the snapshot store if this
// process does not hold it. Returns domain.ErrSessionNotFound otherwise.
func (m *Manager) Get(ctx context.Context, id string) (*drawer.Drawer, error) {
	if d := m.lookup(id); d != nil {
		return d, nil
	}
	if m.store == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	var d *drawer.Drawer
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		// Another caller may have restored it while we waited.
		if d = m.lookup(id); d != nil {
			return nil
		}
		snapshot, err := m.store.Load(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
			}
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		d, err = drawer.Restore(ctx, id, *snapshot, m.service, m.options()...)
		if err != nil {
			return fmt.Errorf("failed to restore drawer: %w", err)
		}
		m.mu.Lock()
		m.drawers[id] = d
		m.mu.Unlock()
		m.logger.Info("Drawer restored", "drawer_id", id)
		return nil
	})
	return d, err
}

// Inspect returns the state of a drawer without restoring it.
func (m *Manager) Inspect(ctx context.Context, id string) (domain.State, error) {
	if d := m.lookup(id); d != nil {
		return d.State(), nil
	}
	if m.store == nil {
		return domain.State{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	snapshot, err := m.store.Load(ctx, id)
	if err != nil {
		return domain.State{}, err
	}
	return *snapshot, nil
}

// Close closes an open drawer and keeps its snapshot for later restore.
// Closing an unknown drawer is a no-op.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	d, ok := m.drawers[id]
	delete(m.drawers, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return d.Close()
}

// Delete closes the drawer and removes its snapshot.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		if err := m.Close(ctx, id); err != nil {
			return err
		}
		if m.store == nil {
			return nil
		}
		if err := m.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete snapshot: %w", err)
		}
		m.logger.Info("Drawer deleted", "drawer_id", id)
		return nil
	})
}

// List returns the IDs of open and stored drawers, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	m.mu.Lock()
	for id := range m.drawers {
		seen[id] = struct{}{}
	}
	m.mu.Unlock()

	if m.store != nil {
		stored, err := m.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}
		for _, id := range stored {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Shutdown closes every open drawer. Snapshots are kept.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	open := m.drawers
	m.drawers = make(map[string]*drawer.Drawer)
	m.mu.Unlock()

	for id, d := range open {
		if err := d.Close(); err != nil {
			m.logger.Warn("Failed to close drawer", "drawer_id", id, "err", err)
		}
	}
}

func (m *Manager) lookup(id string) *drawer.Drawer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drawers[id]
}

// WithLock executes a function while holding the lock for the drawer ID.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"drawer_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
