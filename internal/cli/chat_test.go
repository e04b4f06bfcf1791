package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/wizards/internal/presentation/tui"
	"github.com/aretw0/wizards/pkg/catalog"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/drawer"
	"github.com/aretw0/wizards/pkg/session"
	"github.com/aretw0/wizards/pkg/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessions() *session.Manager {
	templates := catalog.Default()
	router := suggest.NewRouter(suggest.WithFallbackTemplates(templates))
	return session.NewManager(router, session.WithDrawerOptions(drawer.WithTemplates(templates)))
}

func newChat(t *testing.T) (*Chat, *bytes.Buffer) {
	t.Helper()
	m := newSessions()
	t.Cleanup(m.Shutdown)

	d, err := m.Open(context.Background(), domain.Query{Metric: "http_requests_total"})
	require.NoError(t, err)
	r, err := tui.NewRenderer(true)
	require.NoError(t, err)

	var out bytes.Buffer
	return NewChat(d, r, &out), &out
}

func TestChat_HistoricalAndExplain(t *testing.T) {
	ctx := context.Background()
	c, out := newChat(t)

	quit, err := c.Exec(ctx, "all")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "## 0. Everything")
	assert.Contains(t, out.String(), "rate(http_requests_total[5m])")

	out.Reset()
	_, err = c.Exec(ctx, "explain 1")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "*Explanation:* Per-second average increase")
}

func TestChat_PlainTextAsks(t *testing.T) {
	ctx := context.Background()
	c, out := newChat(t)

	_, err := c.Exec(ctx, "percentile please")
	require.NoError(t, err)

	s := c.d.State()
	require.Len(t, s.Interactions, 1)
	assert.False(t, s.ShowStartingMessage)
	assert.Equal(t, "percentile please", s.Interactions[0].PromptText())
	require.Len(t, s.Interactions[0].Suggestions, 1)
	assert.Contains(t, out.String(), "90th percentile")

	// The first interaction is locked, so the next question opens another one.
	_, err = c.Exec(ctx, "ask instance rate")
	require.NoError(t, err)
	assert.Len(t, c.d.State().Interactions, 2)
}

func TestChat_Errors(t *testing.T) {
	ctx := context.Background()
	c, _ := newChat(t)

	_, err := c.Exec(ctx, "submit")
	assert.ErrorIs(t, err, domain.ErrInvalidIndex)

	_, err = c.Exec(ctx, "ai")
	require.NoError(t, err)

	_, err = c.Exec(ctx, "submit")
	assert.ErrorIs(t, err, domain.ErrEmptyPrompt)

	_, err = c.Exec(ctx, "retry 0")
	assert.ErrorIs(t, err, domain.ErrNothingToRetry)

	_, err = c.Exec(ctx, "explain")
	assert.Error(t, err)

	_, err = c.Exec(ctx, "explain x")
	assert.Error(t, err)
}

func TestChat_StartingMessage(t *testing.T) {
	ctx := context.Background()
	c, out := newChat(t)

	_, err := c.Exec(ctx, "check")
	require.NoError(t, err)
	assert.Contains(t, out.String(), ">>> Don't show this again: true")
	assert.True(t, c.d.State().IndicateCheckbox)

	_, err = c.Exec(ctx, "hide")
	require.NoError(t, err)
	assert.False(t, c.d.State().ShowStartingMessage)
}

func TestChat_QuitAndHelp(t *testing.T) {
	ctx := context.Background()
	c, out := newChat(t)

	quit, err := c.Exec(ctx, "help")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "Commands:")

	quit, err = c.Exec(ctx, "  quit ")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestRunChat(t *testing.T) {
	m := newSessions()
	t.Cleanup(m.Shutdown)

	in := strings.NewReader("all\nbogus-index-command\nretry 7\nquit\n")
	var out bytes.Buffer
	err := RunChat(context.Background(), m, RunOptions{Query: domain.Query{Metric: "up"}}, in, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, ">>> Drawer '")
	assert.Contains(t, text, "# `up`")
	assert.Contains(t, text, ">>> invalid interaction index")
	assert.NotContains(t, text, "query assistant", "no banner when output is not a terminal")
}

func TestRunChat_ResumeUnknown(t *testing.T) {
	m := newSessions()
	err := RunChat(context.Background(), m, RunOptions{DrawerID: "missing"}, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery(" http_requests_total ", []string{`job="api"`, "code!=200", "path=~/v1/.*", "env!~dev"})
	require.NoError(t, err)
	assert.Equal(t, domain.Query{
		Metric: "http_requests_total",
		Labels: []domain.Label{
			{Label: "job", Op: "=", Value: "api"},
			{Label: "code", Op: "!=", Value: "200"},
			{Label: "path", Op: "=~", Value: "/v1/.*"},
			{Label: "env", Op: "!~", Value: "dev"},
		},
	}, q)

	for _, bad := range []string{"job", "=api", ""} {
		_, err := ParseQuery("up", []string{bad})
		assert.Error(t, err, bad)
	}
}
