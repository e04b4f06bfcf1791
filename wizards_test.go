package wizards_test

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/wizards"
	"github.com/aretw0/wizards/internal/config"
	"github.com/aretw0/wizards/pkg/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func newEngine(t *testing.T, cfg config.Config, opts ...wizards.Option) *wizards.Engine {
	t.Helper()
	e, err := wizards.New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

type stubLLM struct {
	prompts []string
}

func (s *stubLLM) Suggest(ctx context.Context, req domain.SuggestRequest) ([]domain.Suggestion, error) {
	s.prompts = append(s.prompts, req.Prompt)
	return []domain.Suggestion{{Query: "sum(rate(" + req.Query.Metric + "[5m]))", Title: "From the model"}}, nil
}

func (s *stubLLM) Explain(ctx context.Context, sug domain.Suggestion, q domain.Query) (string, error) {
	return "explained " + sug.Query, nil
}

func TestNew_Defaults(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, defaultConfig(t))
	require.NotNil(t, e.Metrics)

	d, err := e.Sessions.Open(ctx, domain.Query{Metric: "http_requests_total"})
	require.NoError(t, err)
	assert.True(t, d.State().ShowStartingMessage)

	index, err := d.ChooseHistorical(ctx)
	require.NoError(t, err)
	d.Wait()

	in := d.State().Interactions[index]
	require.NotEmpty(t, in.Suggestions)
	assert.Equal(t, "http_requests_total", in.Suggestions[0].Query)

	explanation, err := d.Explain(ctx, index, 1)
	require.NoError(t, err)
	assert.Contains(t, explanation, "http_requests_total")
}

func TestNew_AIFallsBackToTemplates(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, defaultConfig(t))

	d, err := e.Sessions.Open(ctx, domain.Query{Metric: "http_requests_total"})
	require.NoError(t, err)
	index, err := d.ChooseAI(ctx)
	require.NoError(t, err)
	require.NoError(t, d.SetPrompt(ctx, index, "percentile"))
	require.NoError(t, d.Submit(ctx, index))
	d.Wait()

	in := d.State().Interactions[index]
	require.Len(t, in.Suggestions, 1)
	assert.Equal(t, "90th percentile", in.Suggestions[0].Title)
}

func TestNew_WithLLM(t *testing.T) {
	ctx := context.Background()
	llm := &stubLLM{}
	e := newEngine(t, defaultConfig(t), wizards.WithLLM(llm))

	d, err := e.Sessions.Open(ctx, domain.Query{Metric: "up"})
	require.NoError(t, err)
	index, err := d.ChooseAI(ctx)
	require.NoError(t, err)
	require.NoError(t, d.SetPrompt(ctx, index, "availability"))
	require.NoError(t, d.Submit(ctx, index))
	d.Wait()

	assert.Equal(t, []string{"availability"}, llm.prompts)
	in := d.State().Interactions[index]
	require.Len(t, in.Suggestions, 1)

	explanation, err := d.Explain(ctx, index, 0)
	require.NoError(t, err)
	assert.Equal(t, "explained sum(rate(up[5m]))", explanation)
}

func TestNew_SQLiteSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "wizards.db")

	cfg := defaultConfig(t)
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.SQLitePath = path
	cfg.Preferences.Driver = config.DriverSQLite
	cfg.Preferences.Path = path

	first, err := wizards.New(ctx, cfg)
	require.NoError(t, err)

	d, err := first.Sessions.Open(ctx, domain.Query{Metric: "up"})
	require.NoError(t, err)
	require.NoError(t, d.SetIndicateCheckbox(ctx, true))
	index, err := d.ChooseAI(ctx)
	require.NoError(t, err)
	require.NoError(t, d.SetPrompt(ctx, index, "targets down"))
	id := d.ID()
	require.NoError(t, first.Close())

	second := newEngine(t, cfg)
	restored, err := second.Sessions.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, restored.State().Interactions, 1)
	assert.Equal(t, "targets down", restored.State().Interactions[0].PromptText())

	fresh, err := second.Sessions.Open(ctx, domain.Query{Metric: "up"})
	require.NoError(t, err)
	assert.False(t, fresh.State().ShowStartingMessage, "skip preference is kept")

	ids, err := second.Sessions.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, id)
}

func TestNew_RedisMaskedAndEncrypted(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := defaultConfig(t)
	cfg.Store.Driver = config.DriverRedis
	cfg.Preferences.Driver = config.DriverRedis
	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	cfg.Store.MaskPatterns = []string{`\d{4}-\d{4}`}

	e := newEngine(t, cfg, wizards.WithRedisClient(client))
	d, err := e.Sessions.Open(ctx, domain.Query{Metric: "up"})
	require.NoError(t, err)
	index, err := d.ChooseAI(ctx)
	require.NoError(t, err)
	require.NoError(t, d.SetPrompt(ctx, index, "account 1234-5678 latency"))

	raw, err := mr.Get(cfg.Redis.Prefix + d.ID())
	require.NoError(t, err)
	assert.NotContains(t, raw, "latency")
	assert.Contains(t, raw, "sealed")

	other := newEngine(t, cfg, wizards.WithRedisClient(client))
	s, err := other.Sessions.Inspect(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, "account *** latency", s.Interactions[0].PromptText())
	assert.Equal(t, "account 1234-5678 latency", d.State().Interactions[0].PromptText(), "live state is not masked")
}

func TestNew_InvalidConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown driver", func(c *config.Config) { c.Store.Driver = "etcd" }, "store.driver"},
		{"bad key", func(c *config.Config) {
			c.Store.Driver = config.DriverFile
			c.Store.Dir = t.TempDir()
			c.Store.EncryptionKey = "c2hvcnQ="
		}, "invalid encryption key"},
		{"bad pattern", func(c *config.Config) {
			c.Store.Driver = config.DriverFile
			c.Store.Dir = t.TempDir()
			c.Store.MaskPatterns = []string{"("}
		}, "invalid mask pattern"},
		{"missing templates", func(c *config.Config) {
			c.Templates.Source = config.TemplatesYAML
			c.Templates.Path = filepath.Join(t.TempDir(), "missing.yaml")
		}, "failed to load templates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			tt.mutate(&cfg)
			_, err := wizards.New(ctx, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
