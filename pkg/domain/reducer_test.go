package domain_test

import (
	"testing"

	"github.com/aretw0/wizards/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustReduce(t *testing.T, s domain.State, a domain.Action) domain.State {
	t.Helper()
	next, err := domain.Reduce(s, a)
	require.NoError(t, err, "action %s", a.Name())
	return next
}

func TestInitial_StartingMessageFollowsSkipFlag(t *testing.T) {
	q := domain.Query{Metric: "up"}

	skip := true
	s := domain.Initial(q, !skip)
	assert.False(t, s.ShowStartingMessage)
	assert.False(t, s.IndicateCheckbox)
	assert.False(t, s.AskForHelp)
	assert.Empty(t, s.Interactions)

	skip = false
	s = domain.Initial(q, !skip)
	assert.True(t, s.ShowStartingMessage)
	assert.Equal(t, "up", s.Query.Metric)
}

func TestReduce_Flags(t *testing.T) {
	s := domain.Initial(domain.Query{}, true)

	s = mustReduce(t, s, domain.SetShowStartingMessage{Visible: false})
	assert.False(t, s.ShowStartingMessage)

	s = mustReduce(t, s, domain.SetIndicateCheckbox{Value: true})
	assert.True(t, s.IndicateCheckbox)

	s = mustReduce(t, s, domain.SetIndicateCheckbox{Value: false})
	assert.False(t, s.IndicateCheckbox)
}

func TestReduce_AddInteractionAppends(t *testing.T) {
	s := domain.Initial(domain.Query{}, true)

	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionAI, IsLoading: false})
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionHistorical, IsLoading: true})

	require.Len(t, s.Interactions, 2)
	first := s.Interactions[0]
	assert.Equal(t, domain.SuggestionAI, first.SuggestionType)
	assert.Nil(t, first.Prompt)
	assert.False(t, first.IsLoading)
	assert.NotNil(t, first.Suggestions)
	assert.Empty(t, first.Suggestions)
	assert.Equal(t, domain.PhaseIdle, first.Phase())

	second := s.Interactions[1]
	assert.Equal(t, domain.SuggestionHistorical, second.SuggestionType)
	assert.True(t, second.IsLoading)
	assert.Equal(t, domain.PhaseLoading, second.Phase())

	_, err := domain.Reduce(s, domain.AddInteraction{Type: "bogus"})
	assert.ErrorIs(t, err, domain.ErrWrongType)
}

func TestReduce_AppendOnlyIndices(t *testing.T) {
	s := domain.Initial(domain.Query{}, true)
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionAI})
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionHistorical, IsLoading: true})

	before := s.Clone()

	actions := []domain.Action{
		domain.SetShowStartingMessage{Visible: false},
		domain.UpdateInteractionAt{Index: 0, Interaction: s.Interactions[0].WithPrompt("cpu")},
		domain.AddInteraction{Type: domain.SuggestionAI},
		domain.SuggestionsResolved{Index: 1, Generation: 0, Type: domain.SuggestionHistorical,
			Suggestions: []domain.Suggestion{{Query: "up"}}},
	}
	for _, a := range actions {
		next := mustReduce(t, s, a)
		require.GreaterOrEqual(t, len(next.Interactions), len(s.Interactions))
		for i := range s.Interactions {
			assert.Equal(t, s.Interactions[i].SuggestionType, next.Interactions[i].SuggestionType,
				"type of index %d changed after %s", i, a.Name())
		}
		s = next
	}

	// The original value was never mutated.
	assert.Equal(t, before, before.Clone())
	assert.Len(t, before.Interactions, 2)
	assert.Nil(t, before.Interactions[0].Prompt)
	assert.True(t, before.Interactions[1].IsLoading)
}

func TestReduce_UpdateInteractionAtReplacesExactly(t *testing.T) {
	s := domain.Initial(domain.Query{}, true)
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionAI})
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionAI})

	prompt := "error rate"
	replacement := domain.Interaction{
		SuggestionType: domain.SuggestionHistorical,
		Prompt:         &prompt,
		IsLoading:      true,
		Suggestions:    []domain.Suggestion{{Query: "rate(x[5m])"}},
		Generation:     7,
	}

	next := mustReduce(t, s, domain.UpdateInteractionAt{Index: 1, Interaction: replacement})
	assert.Equal(t, replacement, next.Interactions[1])
	assert.Equal(t, s.Interactions[0], next.Interactions[0])

	// No aliasing between the action payload and the new state.
	prompt = "changed"
	replacement.Suggestions[0].Query = "changed"
	assert.Equal(t, "error rate", next.Interactions[1].PromptText())
	assert.Equal(t, "rate(x[5m])", next.Interactions[1].Suggestions[0].Query)
}

func TestReduce_UpdateInteractionAtInvalidIndex(t *testing.T) {
	s := domain.Initial(domain.Query{}, true)
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionAI})

	for _, idx := range []int{-1, 1, 42} {
		out, err := domain.Reduce(s, domain.UpdateInteractionAt{Index: idx, Interaction: domain.NewInteraction(domain.SuggestionAI, false)})
		assert.ErrorIs(t, err, domain.ErrInvalidIndex)
		assert.Equal(t, s, out)
	}
}

// Scenario: historical walkthrough.
func TestReduce_HistoricalWalkthrough(t *testing.T) {
	s := domain.Initial(domain.Query{Metric: "up"}, true)
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionHistorical, IsLoading: true})

	s = mustReduce(t, s, domain.SuggestionsResolved{
		Index: 0, Generation: 0, Type: domain.SuggestionHistorical,
		Suggestions: []domain.Suggestion{{Query: "up"}, {Query: "rate(up[5m])"}},
	})

	in := s.Interactions[0]
	assert.False(t, in.IsLoading)
	assert.Len(t, in.Suggestions, 2)
	assert.Equal(t, domain.PhaseResolved, in.Phase())
	assert.True(t, in.Resolved())
}

// Scenario: AI prompt with a fetch failure and a retry.
func TestReduce_AIPromptFailureAndRetry(t *testing.T) {
	s := domain.Initial(domain.Query{}, true)
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionAI})
	s = mustReduce(t, s, domain.UpdateInteractionAt{Index: 0, Interaction: s.Interactions[0].WithPrompt("errors by pod")})

	pending := s.Interactions[0].BeginFetch()
	assert.Equal(t, uint64(1), pending.Generation)
	s = mustReduce(t, s, domain.UpdateInteractionAt{Index: 0, Interaction: pending})

	s = mustReduce(t, s, domain.FetchFailed{Index: 0, Generation: 1, Op: domain.OpSuggest, Message: "boom"})
	in := s.Interactions[0]
	assert.False(t, in.IsLoading)
	require.NotNil(t, in.Failure)
	assert.Equal(t, "boom", in.Failure.Message)
	assert.Equal(t, domain.PhaseFailed, in.Phase())
	assert.Equal(t, "errors by pod", in.PromptText())

	retry := in.BeginFetch()
	s = mustReduce(t, s, domain.UpdateInteractionAt{Index: 0, Interaction: retry})
	assert.Nil(t, s.Interactions[0].Failure)

	s = mustReduce(t, s, domain.SuggestionsResolved{Index: 0, Generation: 2, Type: domain.SuggestionAI,
		Suggestions: []domain.Suggestion{{Query: "sum by (pod) (errors)"}}})
	assert.Equal(t, domain.PhaseResolved, s.Interactions[0].Phase())
}

// Scenario: "show me everything" while an AI fetch is in flight.
func TestReduce_ShowEverythingDiscardsLateAIResult(t *testing.T) {
	s := domain.Initial(domain.Query{}, true)
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionAI})
	loading := s.Interactions[0].WithPrompt("latency").BeginFetch()
	s = mustReduce(t, s, domain.UpdateInteractionAt{Index: 0, Interaction: loading})
	aiTicket := s.Interactions[0].Generation

	s = mustReduce(t, s, domain.UpdateInteractionAt{Index: 0, Interaction: s.Interactions[0].AsHistorical()})
	assert.Equal(t, domain.SuggestionHistorical, s.Interactions[0].SuggestionType)

	late, err := domain.Reduce(s, domain.SuggestionsResolved{Index: 0, Generation: aiTicket, Type: domain.SuggestionAI,
		Suggestions: []domain.Suggestion{{Query: "histogram_quantile(0.9, x)"}}})
	assert.ErrorIs(t, err, domain.ErrStaleUpdate)
	assert.Equal(t, s, late)

	s = mustReduce(t, s, domain.SuggestionsResolved{Index: 0, Generation: s.Interactions[0].Generation,
		Type: domain.SuggestionHistorical, Suggestions: []domain.Suggestion{{Query: "up"}}})
	assert.Equal(t, "up", s.Interactions[0].Suggestions[0].Query)
}

// Scenario: a failure arriving after the interaction was replaced is dropped.
func TestReduce_StaleFailureIgnored(t *testing.T) {
	s := domain.Initial(domain.Query{}, true)
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionHistorical, IsLoading: true})
	s = mustReduce(t, s, domain.UpdateInteractionAt{Index: 0, Interaction: s.Interactions[0].BeginFetch()})

	_, err := domain.Reduce(s, domain.FetchFailed{Index: 0, Generation: 0, Op: domain.OpSuggest, Message: "late"})
	assert.ErrorIs(t, err, domain.ErrStaleUpdate)

	resolved := mustReduce(t, s, domain.SuggestionsResolved{Index: 0, Generation: 1, Type: domain.SuggestionHistorical,
		Suggestions: []domain.Suggestion{{Query: "up"}}})
	_, err = domain.Reduce(resolved, domain.FetchFailed{Index: 0, Generation: 1, Op: domain.OpSuggest, Message: "late"})
	assert.ErrorIs(t, err, domain.ErrStaleUpdate, "a resolved interaction is no longer loading")
}

func TestReduce_Explanation(t *testing.T) {
	s := domain.Initial(domain.Query{}, true)
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionHistorical, IsLoading: true})
	s = mustReduce(t, s, domain.SuggestionsResolved{Index: 0, Type: domain.SuggestionHistorical,
		Suggestions: []domain.Suggestion{{Query: "up"}, {Query: "down"}}})

	s = mustReduce(t, s, domain.ExplanationStarted{Index: 0, SuggestionIndex: 1})
	assert.True(t, s.Interactions[0].Suggestions[1].Explaining)
	assert.False(t, s.Interactions[0].IsLoading, "explanations do not touch the interaction loading flag")

	s = mustReduce(t, s, domain.FetchFailed{Index: 0, Op: domain.OpExplain, SuggestionIndex: 1, Message: "timeout"})
	sug := s.Interactions[0].Suggestions[1]
	assert.False(t, sug.Explaining)
	require.NotNil(t, sug.ExplainFailure)
	assert.Nil(t, s.Interactions[0].Failure)

	s = mustReduce(t, s, domain.ExplanationResolved{Index: 0, SuggestionIndex: 1, Explanation: "counts things"})
	sug = s.Interactions[0].Suggestions[1]
	assert.Equal(t, "counts things", sug.Explanation)
	assert.Nil(t, sug.ExplainFailure)
	assert.Empty(t, s.Interactions[0].Suggestions[0].Explanation)

	_, err := domain.Reduce(s, domain.ExplanationResolved{Index: 0, SuggestionIndex: 1, Explanation: "again"})
	assert.ErrorIs(t, err, domain.ErrStaleUpdate, "explanations are never overwritten")

	_, err = domain.Reduce(s, domain.ExplanationStarted{Index: 0, SuggestionIndex: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidIndex)
}

func TestReduce_NilAction(t *testing.T) {
	s := domain.Initial(domain.Query{}, true)
	_, err := domain.Reduce(s, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestQuerySelector(t *testing.T) {
	tests := []struct {
		name  string
		query domain.Query
		want  string
	}{
		{"bare metric", domain.Query{Metric: "up"}, "up"},
		{"sorted labels", domain.Query{Metric: "http_requests_total", Labels: []domain.Label{
			{Label: "job", Value: "api"},
			{Label: "code", Op: "=~", Value: "5.."},
		}}, `http_requests_total{code=~"5..",job="api"}`},
		{"quoted value", domain.Query{Metric: "m", Labels: []domain.Label{{Label: "path", Op: "!=", Value: `a"b`}}}, `m{path!="a\"b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Selector())
		})
	}
}

func TestState_Interrupted(t *testing.T) {
	s := domain.Initial(domain.Query{}, true)
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionHistorical, IsLoading: true})
	s = mustReduce(t, s, domain.AddInteraction{Type: domain.SuggestionHistorical, IsLoading: true})
	s = mustReduce(t, s, domain.SuggestionsResolved{Index: 1, Type: domain.SuggestionHistorical,
		Suggestions: []domain.Suggestion{{Query: "up"}}})
	s = mustReduce(t, s, domain.ExplanationStarted{Index: 1, SuggestionIndex: 0})

	out := s.Interrupted()

	assert.Equal(t, domain.PhaseFailed, out.Interactions[0].Phase())
	assert.Equal(t, domain.MessageInterrupted, out.Interactions[0].Failure.Message)
	assert.Equal(t, domain.PhaseResolved, out.Interactions[1].Phase())
	assert.False(t, out.Interactions[1].Suggestions[0].Explaining)
	require.NotNil(t, out.Interactions[1].Suggestions[0].ExplainFailure)

	assert.True(t, s.Interactions[0].IsLoading, "receiver is not modified")
}
