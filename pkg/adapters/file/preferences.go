package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// PreferenceStore implements ports.PreferenceStore as a single JSON object
// of boolean flags.
type PreferenceStore struct {
	path string
	mu   sync.Mutex
}

// NewPreferenceStore stores preferences in the file at path.
func NewPreferenceStore(path string) *PreferenceStore {
	return &PreferenceStore{path: path}
}

func (p *PreferenceStore) read() (map[string]bool, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	flags := map[string]bool{}
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return flags, nil
}

func (p *PreferenceStore) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	flags, err := p.read()
	if err != nil {
		return def, err
	}
	if v, ok := flags[key]; ok {
		return v, nil
	}
	return def, nil
}

func (p *PreferenceStore) SetBool(ctx context.Context, key string, value bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	flags, err := p.read()
	if err != nil {
		return err
	}
	flags[key] = value
	data, err := json.MarshalIndent(flags, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	return writeAtomic(p.path, data)
}
