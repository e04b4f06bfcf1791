package memory

import (
	"context"
	"sync"
)

// PreferenceStore implements ports.PreferenceStore in memory.
type PreferenceStore struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewPreferenceStore creates an empty preference store.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{flags: make(map[string]bool)}
}

func (p *PreferenceStore) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.flags[key]; ok {
		return v, nil
	}
	return def, nil
}

func (p *PreferenceStore) SetBool(ctx context.Context, key string, value bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flags[key] = value
	return nil
}
