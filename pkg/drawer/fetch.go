package drawer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/wizards/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FetchSuggestions starts the suggestion request for interaction index, which
// must be loading. The request runs in the background; its result is applied
// only if the interaction still waits for it. A request already running for
// the same generation is not started twice.
func (d *Drawer) FetchSuggestions(ctx context.Context, index int) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return domain.ErrDrawerClosed
	}
	in, ok := d.state.At(index)
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %d (have %d)", domain.ErrInvalidIndex, index, len(d.state.Interactions))
	}
	if !in.IsLoading {
		d.mu.Unlock()
		return fmt.Errorf("%w: interaction %d", domain.ErrNotLoading, index)
	}
	if gen, running := d.fetching[index]; running && gen == in.Generation {
		d.mu.Unlock()
		return nil
	}

	req := domain.SuggestRequest{
		Type:  in.SuggestionType,
		Query: d.state.Query.Clone(),
	}
	if in.SuggestionType == domain.SuggestionAI {
		req.Prompt = in.PromptText()
	}
	sc := d.scopeFor(index, in.Generation)
	d.fetching[index] = in.Generation
	d.pending++
	d.mu.Unlock()

	ev := d.fetchEvent(domain.OpSuggest, in.SuggestionType, index, 0, in.Generation)
	go d.runSuggest(sc, req, ev)
	return nil
}

// FetchPending starts the suggestion request of every loading interaction
// that has none running and returns their indices. Raw AddInteraction and
// UpdateInteractionAt actions mark interactions loading without issuing one.
func (d *Drawer) FetchPending(ctx context.Context) ([]int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, domain.ErrDrawerClosed
	}
	var waiting []int
	for i, in := range d.state.Interactions {
		if !in.IsLoading {
			continue
		}
		if gen, running := d.fetching[i]; running && gen == in.Generation {
			continue
		}
		waiting = append(waiting, i)
	}
	d.mu.Unlock()

	started := make([]int, 0, len(waiting))
	for _, i := range waiting {
		if err := d.FetchSuggestions(ctx, i); err != nil {
			if errors.Is(err, domain.ErrNotLoading) {
				continue
			}
			return started, err
		}
		started = append(started, i)
	}
	return started, nil
}

func (d *Drawer) runSuggest(sc *scope, req domain.SuggestRequest, ev *domain.FetchEvent) {
	defer d.done()
	defer d.forget(ev.Index, ev.Generation)

	ctx, cancel := d.withTimeout(sc.ctx)
	defer cancel()

	ctx, span := d.tracer.Start(ctx, "drawer.suggest",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("wizards.drawer.id", d.id),
			attribute.Int("wizards.interaction.index", ev.Index),
			attribute.String("wizards.suggestion.type", string(req.Type)),
			attribute.Int64("wizards.interaction.generation", int64(ev.Generation)),
		),
	)
	defer span.End()

	d.emitFetchStart(ctx, ev)
	start := time.Now()

	if req.Type == domain.SuggestionHistorical && d.templates != nil {
		templates, err := d.templates.Templates(ctx)
		if err != nil {
			d.finishSuggest(ctx, span, ev, start, nil, fmt.Errorf("failed to load templates: %w", err))
			return
		}
		req.Templates = templates
	}

	suggestions, err := d.service.Suggest(ctx, req)
	d.finishSuggest(ctx, span, ev, start, suggestions, err)
}

func (d *Drawer) finishSuggest(ctx context.Context, span trace.Span, ev *domain.FetchEvent, start time.Time, suggestions []domain.Suggestion, err error) {
	ev.Duration = time.Since(start)

	var action domain.Action
	switch {
	case err == nil:
		if suggestions == nil {
			suggestions = []domain.Suggestion{}
		}
		action = domain.SuggestionsResolved{
			Index:       ev.Index,
			Generation:  ev.Generation,
			Type:        ev.SuggestionType,
			Suggestions: suggestions,
		}
	case errors.Is(ctx.Err(), context.Canceled):
		ev.Outcome = domain.OutcomeCanceled
		ev.Err = err
		span.SetStatus(codes.Unset, "canceled")
		d.emitFetchDone(ctx, ev)
		return
	default:
		action = domain.FetchFailed{
			Index:      ev.Index,
			Generation: ev.Generation,
			Op:         domain.OpSuggest,
			Message:    failureMessage(err),
		}
	}

	_, dispatchErr := d.Dispatch(ctx, action)
	d.classify(ev, err, dispatchErr)
	if ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
	span.SetAttributes(attribute.String("wizards.fetch.outcome", string(ev.Outcome)))
	d.emitFetchDone(ctx, ev)
}

// FetchExplanation returns the explanation of a suggestion. A cached
// explanation is returned without contacting the service (cached is true).
// Otherwise a single background request is started and written back to that
// suggestion only; the call returns immediately with cached false.
func (d *Drawer) FetchExplanation(ctx context.Context, index, suggestionIndex int) (explanation string, cached bool, err error) {
	explanation, ch, err := d.startExplain(ctx, index, suggestionIndex)
	if err != nil || ch == nil {
		return explanation, err == nil, err
	}
	return "", false, nil
}

// Explain is the blocking form of FetchExplanation. It waits for the
// explanation or for ctx to be done.
func (d *Drawer) Explain(ctx context.Context, index, suggestionIndex int) (string, error) {
	explanation, ch, err := d.startExplain(ctx, index, suggestionIndex)
	if err != nil || ch == nil {
		return explanation, err
	}
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type explainResult struct {
	Val any
	Err error
}

// startExplain returns the cached explanation, or the channel of the request
// producing it. Concurrent callers for the same suggestion share one request.
func (d *Drawer) startExplain(ctx context.Context, index, suggestionIndex int) (string, <-chan explainResult, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", nil, domain.ErrDrawerClosed
	}
	in, ok := d.state.At(index)
	if !ok {
		d.mu.Unlock()
		return "", nil, fmt.Errorf("%w: %d (have %d)", domain.ErrInvalidIndex, index, len(d.state.Interactions))
	}
	if suggestionIndex < 0 || suggestionIndex >= len(in.Suggestions) {
		d.mu.Unlock()
		return "", nil, fmt.Errorf("%w: suggestion %d of interaction %d (have %d)",
			domain.ErrInvalidIndex, suggestionIndex, index, len(in.Suggestions))
	}
	sug := in.Suggestions[suggestionIndex]
	if sug.Explanation != "" {
		d.mu.Unlock()
		return sug.Explanation, nil, nil
	}

	started := domain.ExplanationStarted{Index: index, Generation: in.Generation, SuggestionIndex: suggestionIndex}
	var startErr error
	if !sug.Explaining {
		_, startErr = d.dispatchLocked(ctx, started)
	}
	sc := d.scopeFor(index, in.Generation)
	query := d.state.Query.Clone()
	key := fmt.Sprintf("%d/%d/%d", index, in.Generation, suggestionIndex)
	d.pending++
	d.mu.Unlock()

	if !sug.Explaining {
		d.emitDispatch(ctx, started, startErr)
	}

	ev := d.fetchEvent(domain.OpExplain, in.SuggestionType, index, suggestionIndex, in.Generation)
	flight := d.explain.DoChan(key, func() (any, error) {
		return d.runExplain(sc, sug, query, ev)
	})

	out := make(chan explainResult, 1)
	go func() {
		defer d.done()
		res := <-flight
		out <- explainResult{Val: res.Val, Err: res.Err}
	}()
	return "", out, nil
}

func (d *Drawer) runExplain(sc *scope, sug domain.Suggestion, query domain.Query, ev *domain.FetchEvent) (any, error) {
	ctx, cancel := d.withTimeout(sc.ctx)
	defer cancel()

	ctx, span := d.tracer.Start(ctx, "drawer.explain",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("wizards.drawer.id", d.id),
			attribute.Int("wizards.interaction.index", ev.Index),
			attribute.Int("wizards.suggestion.index", ev.SuggestionIndex),
		),
	)
	defer span.End()

	d.emitFetchStart(ctx, ev)
	start := time.Now()

	explanation, err := d.service.Explain(ctx, sug, query)
	ev.Duration = time.Since(start)
	if err == nil && strings.TrimSpace(explanation) == "" {
		err = errEmptyExplanation
	}

	var action domain.Action
	switch {
	case err == nil:
		action = domain.ExplanationResolved{
			Index:           ev.Index,
			Generation:      ev.Generation,
			SuggestionIndex: ev.SuggestionIndex,
			Explanation:     explanation,
		}
	case errors.Is(ctx.Err(), context.Canceled):
		ev.Outcome = domain.OutcomeCanceled
		ev.Err = err
		d.emitFetchDone(ctx, ev)
		return "", fmt.Errorf("explanation canceled: %w", err)
	default:
		action = domain.FetchFailed{
			Index:           ev.Index,
			Generation:      ev.Generation,
			Op:              domain.OpExplain,
			SuggestionIndex: ev.SuggestionIndex,
			Message:         failureMessage(err),
		}
	}

	_, dispatchErr := d.Dispatch(ctx, action)
	d.classify(ev, err, dispatchErr)
	if ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
	d.emitFetchDone(ctx, ev)

	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}
	return explanation, nil
}

// classify sets the fetch outcome from the service and dispatch errors.
func (d *Drawer) classify(ev *domain.FetchEvent, fetchErr, dispatchErr error) {
	switch {
	case dispatchErr != nil && errors.Is(dispatchErr, domain.ErrDrawerClosed):
		ev.Outcome = domain.OutcomeCanceled
		ev.Err = dispatchErr
	case dispatchErr != nil:
		ev.Outcome = domain.OutcomeStale
		ev.Err = dispatchErr
	case fetchErr != nil:
		ev.Outcome = domain.OutcomeFailed
		ev.Err = fetchErr
		d.logger.Warn("Fetch failed",
			"drawer_id", d.id,
			"op", ev.Op,
			"index", ev.Index,
			"err", fetchErr,
		)
	default:
		ev.Outcome = domain.OutcomeOK
	}
}

func (d *Drawer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.fetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.fetchTimeout)
}

// forget clears the running fetch of index unless a newer one replaced it.
func (d *Drawer) forget(index int, generation uint64) {
	d.mu.Lock()
	if gen, ok := d.fetching[index]; ok && gen == generation {
		delete(d.fetching, index)
	}
	d.mu.Unlock()
}

func (d *Drawer) done() {
	d.mu.Lock()
	d.pending--
	if d.pending == 0 {
		d.idle.Broadcast()
	}
	d.mu.Unlock()
}

// errEmptyExplanation is the failure recorded for a blank explanation.
var errEmptyExplanation = errors.New("empty explanation")

func failureMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}

func (d *Drawer) fetchEvent(op domain.FetchOp, t domain.SuggestionType, index, suggestionIndex int, generation uint64) *domain.FetchEvent {
	return &domain.FetchEvent{
		EventBase: domain.EventBase{
			Type:      domain.EventFetchStart,
			SessionID: d.id,
		},
		Op:              op,
		SuggestionType:  t,
		Index:           index,
		SuggestionIndex: suggestionIndex,
		Generation:      generation,
	}
}

func (d *Drawer) emitFetchStart(ctx context.Context, ev *domain.FetchEvent) {
	ev.Timestamp = time.Now()
	d.logger.Debug("Fetch started",
		"drawer_id", d.id,
		"op", ev.Op,
		"index", ev.Index,
		"generation", ev.Generation,
	)
	if d.hooks.OnFetchStart != nil {
		d.hooks.OnFetchStart(ctx, ev)
	}
}

func (d *Drawer) emitFetchDone(ctx context.Context, ev *domain.FetchEvent) {
	done := *ev
	done.Type = domain.EventFetchDone
	done.Timestamp = time.Now()
	d.logger.Debug("Fetch finished",
		"drawer_id", d.id,
		"op", done.Op,
		"index", done.Index,
		"outcome", done.Outcome,
		"duration", done.Duration,
	)
	if d.hooks.OnFetchDone != nil {
		d.hooks.OnFetchDone(ctx, &done)
	}
}
