package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	backend "github.com/redis/go-redis/v9"
)

// PreferenceStore implements ports.PreferenceStore as a single Redis hash.
type PreferenceStore struct {
	client backend.UniversalClient
	key    string
}

// NewPreferenceStore stores flags in the hash <prefix>prefs.
func NewPreferenceStore(client backend.UniversalClient, prefix string) *PreferenceStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &PreferenceStore{client: client, key: prefix + "prefs"}
}

func (p *PreferenceStore) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	raw, err := p.client.HGet(ctx, p.key, key).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return def, nil
		}
		return def, fmt.Errorf("redis get preference: %w", err)
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("preference %s: %w", key, err)
	}
	return v, nil
}

func (p *PreferenceStore) SetBool(ctx context.Context, key string, value bool) error {
	if err := p.client.HSet(ctx, p.key, key, strconv.FormatBool(value)).Err(); err != nil {
		return fmt.Errorf("redis set preference: %w", err)
	}
	return nil
}
