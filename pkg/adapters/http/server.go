// Package http exposes drawers over a JSON/HTTP API with a server-sent event
// stream of state diffs.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/wizards"
	"github.com/aretw0/wizards/internal/logging"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/drawer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
)

// Sessions is the drawer registry the server drives. *session.Manager implements it.
type Sessions interface {
	Open(ctx context.Context, query domain.Query) (*drawer.Drawer, error)
	Get(ctx context.Context, id string) (*drawer.Drawer, error)
	Inspect(ctx context.Context, id string) (domain.State, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// Server holds the HTTP handlers.
type Server struct {
	Sessions Sessions

	logger   *slog.Logger
	metrics  http.Handler
	validate bool
}

// Option configures the handler.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithoutValidation disables OpenAPI request validation.
func WithoutValidation() Option {
	return func(s *Server) {
		s.validate = false
	}
}

// NewHandler creates the HTTP handler for sessions.
func NewHandler(sessions Sessions, opts ...Option) (http.Handler, error) {
	s := &Server{
		Sessions: sessions,
		logger:   logging.NewNop(),
		validate: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	if s.validate {
		doc, err := GetSwagger()
		if err != nil {
			return nil, err
		}
		validator, err := requestValidator(doc, s.logger)
		if err != nil {
			return nil, err
		}
		r.Use(validator)
	}

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Route("/drawers", func(r chi.Router) {
		r.Get("/", s.ListDrawers)
		r.Post("/", s.OpenDrawer)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetDrawer)
			r.Delete("/", s.DeleteDrawer)
			r.Post("/actions", s.DispatchAction)
			r.Put("/starting-message", s.SetStartingMessage)
			r.Put("/checkbox", s.SetCheckbox)
			r.Post("/choose", s.ChooseFlow)
			r.Post("/interactions", s.NextInteraction)
			r.Put("/interactions/{index}/prompt", s.SetPrompt)
			r.Post("/interactions/{index}/submit", s.Submit)
			r.Post("/interactions/{index}/show-everything", s.ShowEverything)
			r.Post("/interactions/{index}/retry", s.Retry)
			r.Post("/interactions/{index}/suggestions/{suggestion}/explain", s.Explain)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// DrawerResponse carries a drawer ID and its state.
type DrawerResponse struct {
	ID    string       `json:"id"`
	State domain.State `json:"state"`
}

// IndexResponse reports the interaction an intent created or touched.
type IndexResponse struct {
	Index int          `json:"index"`
	State domain.State `json:"state"`
}

// ExplainResponse is returned by the explain endpoint. Pending is true when
// the explanation is still being fetched.
type ExplainResponse struct {
	Explanation string `json:"explanation,omitempty"`
	Cached      bool   `json:"cached"`
	Pending     bool   `json:"pending"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "wizards-http",
		"version":     strings.TrimSpace(wizards.Version),
		"api_version": apiVersion,
	})
}

// ListDrawers handles GET /drawers.
func (s *Server) ListDrawers(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, "ListDrawers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"drawers": ids})
}

// OpenDrawer handles POST /drawers.
func (s *Server) OpenDrawer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query domain.Query `json:"query"`
	}
	if !s.decode(w, r, "OpenDrawer", &body) {
		return
	}
	d, err := s.Sessions.Open(r.Context(), body.Query)
	if err != nil {
		s.fail(w, "OpenDrawer", err)
		return
	}
	writeJSON(w, http.StatusCreated, DrawerResponse{ID: d.ID(), State: d.State()})
}

// GetDrawer handles GET /drawers/{id}. It does not restore a stored drawer.
func (s *Server) GetDrawer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.drawerID(w, r)
	if !ok {
		return
	}
	state, err := s.Sessions.Inspect(r.Context(), id)
	if err != nil {
		s.fail(w, "GetDrawer", err)
		return
	}
	writeJSON(w, http.StatusOK, DrawerResponse{ID: id, State: state})
}

// DeleteDrawer handles DELETE /drawers/{id}.
func (s *Server) DeleteDrawer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.drawerID(w, r)
	if !ok {
		return
	}
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, "DeleteDrawer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DispatchAction handles POST /drawers/{id}/actions with a raw reducer action.
func (s *Server) DispatchAction(w http.ResponseWriter, r *http.Request) {
	d, ok := s.drawer(w, r)
	if !ok {
		return
	}
	var body struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if !s.decode(w, r, "DispatchAction", &body) {
		return
	}
	action, err := domain.DecodeAction(body.Type, body.Payload)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := d.Dispatch(r.Context(), action); err != nil {
		s.fail(w, "DispatchAction", err)
		return
	}
	// Loading interactions written by the action need their request issued.
	started, err := d.FetchPending(r.Context())
	if err != nil {
		s.fail(w, "DispatchAction", err)
		return
	}
	if len(started) > 0 {
		s.logger.Debug("Started pending fetches", "drawer_id", d.ID(), "indices", started)
	}
	writeJSON(w, http.StatusOK, DrawerResponse{ID: d.ID(), State: d.State()})
}

// SetStartingMessage handles PUT /drawers/{id}/starting-message.
func (s *Server) SetStartingMessage(w http.ResponseWriter, r *http.Request) {
	d, ok := s.drawer(w, r)
	if !ok {
		return
	}
	var body struct {
		Visible bool `json:"visible"`
	}
	if !s.decode(w, r, "SetStartingMessage", &body) {
		return
	}
	if err := d.SetShowStartingMessage(r.Context(), body.Visible); err != nil {
		s.fail(w, "SetStartingMessage", err)
		return
	}
	writeJSON(w, http.StatusOK, DrawerResponse{ID: d.ID(), State: d.State()})
}

// SetCheckbox handles PUT /drawers/{id}/checkbox.
func (s *Server) SetCheckbox(w http.ResponseWriter, r *http.Request) {
	d, ok := s.drawer(w, r)
	if !ok {
		return
	}
	var body struct {
		Value bool `json:"value"`
	}
	if !s.decode(w, r, "SetCheckbox", &body) {
		return
	}
	if err := d.SetIndicateCheckbox(r.Context(), body.Value); err != nil {
		s.fail(w, "SetCheckbox", err)
		return
	}
	writeJSON(w, http.StatusOK, DrawerResponse{ID: d.ID(), State: d.State()})
}

// ChooseFlow handles POST /drawers/{id}/choose.
func (s *Server) ChooseFlow(w http.ResponseWriter, r *http.Request) {
	d, ok := s.drawer(w, r)
	if !ok {
		return
	}
	var body struct {
		Type domain.SuggestionType `json:"type"`
	}
	if !s.decode(w, r, "ChooseFlow", &body) {
		return
	}

	var (
		index int
		err   error
	)
	switch body.Type {
	case domain.SuggestionHistorical:
		index, err = d.ChooseHistorical(r.Context())
	case domain.SuggestionAI:
		index, err = d.ChooseAI(r.Context())
	default:
		writeJSONError(w, http.StatusBadRequest, "unknown suggestion type "+string(body.Type))
		return
	}
	if err != nil {
		s.fail(w, "ChooseFlow", err)
		return
	}
	writeJSON(w, http.StatusAccepted, IndexResponse{Index: index, State: d.State()})
}

// NextInteraction handles POST /drawers/{id}/interactions.
func (s *Server) NextInteraction(w http.ResponseWriter, r *http.Request) {
	d, ok := s.drawer(w, r)
	if !ok {
		return
	}
	index, err := d.NextInteraction(r.Context())
	if err != nil {
		s.fail(w, "NextInteraction", err)
		return
	}
	writeJSON(w, http.StatusCreated, IndexResponse{Index: index, State: d.State()})
}

// SetPrompt handles PUT /drawers/{id}/interactions/{index}/prompt.
func (s *Server) SetPrompt(w http.ResponseWriter, r *http.Request) {
	d, index, ok := s.interaction(w, r)
	if !ok {
		return
	}
	var body struct {
		Prompt string `json:"prompt"`
	}
	if !s.decode(w, r, "SetPrompt", &body) {
		return
	}
	if err := d.SetPrompt(r.Context(), index, body.Prompt); err != nil {
		s.fail(w, "SetPrompt", err)
		return
	}
	writeJSON(w, http.StatusOK, IndexResponse{Index: index, State: d.State()})
}

// Submit handles POST /drawers/{id}/interactions/{index}/submit.
func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	s.startFetch(w, r, "Submit", (*drawer.Drawer).Submit)
}

// ShowEverything handles POST /drawers/{id}/interactions/{index}/show-everything.
func (s *Server) ShowEverything(w http.ResponseWriter, r *http.Request) {
	s.startFetch(w, r, "ShowEverything", (*drawer.Drawer).ShowEverything)
}

// Retry handles POST /drawers/{id}/interactions/{index}/retry.
func (s *Server) Retry(w http.ResponseWriter, r *http.Request) {
	s.startFetch(w, r, "Retry", (*drawer.Drawer).Retry)
}

func (s *Server) startFetch(w http.ResponseWriter, r *http.Request, op string, fn func(*drawer.Drawer, context.Context, int) error) {
	d, index, ok := s.interaction(w, r)
	if !ok {
		return
	}
	if err := fn(d, r.Context(), index); err != nil {
		s.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, IndexResponse{Index: index, State: d.State()})
}

// Explain handles POST /drawers/{id}/interactions/{index}/suggestions/{suggestion}/explain.
// With wait=true it blocks until the explanation is available.
func (s *Server) Explain(w http.ResponseWriter, r *http.Request) {
	d, index, ok := s.interaction(w, r)
	if !ok {
		return
	}
	var si int
	if err := runtime.BindStyledParameterWithOptions("simple", "suggestion", chi.URLParam(r, "suggestion"), &si,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true}); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid format for parameter suggestion: "+err.Error())
		return
	}
	var wait *bool
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &wait); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid format for parameter wait: "+err.Error())
		return
	}

	if wait != nil && *wait {
		explanation, err := d.Explain(r.Context(), index, si)
		if err != nil {
			s.fail(w, "Explain", err)
			return
		}
		writeJSON(w, http.StatusOK, ExplainResponse{Explanation: explanation})
		return
	}

	explanation, cached, err := d.FetchExplanation(r.Context(), index, si)
	if err != nil {
		s.fail(w, "Explain", err)
		return
	}
	if cached {
		writeJSON(w, http.StatusOK, ExplainResponse{Explanation: explanation, Cached: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ExplainResponse{Pending: true})
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		s.logger.Warn(op+": Invalid request body", "err", err)
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "err", err, "status", status)
	}
	writeJSONError(w, status, err.Error())
}

func (s *Server) drawerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	if err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true}); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid format for parameter id: "+err.Error())
		return "", false
	}
	return id, true
}

func (s *Server) drawer(w http.ResponseWriter, r *http.Request) (*drawer.Drawer, bool) {
	id, ok := s.drawerID(w, r)
	if !ok {
		return nil, false
	}
	d, err := s.Sessions.Get(r.Context(), id)
	if err != nil {
		s.fail(w, "GetDrawer", err)
		return nil, false
	}
	return d, true
}

func (s *Server) interaction(w http.ResponseWriter, r *http.Request) (*drawer.Drawer, int, bool) {
	d, ok := s.drawer(w, r)
	if !ok {
		return nil, 0, false
	}
	var index int
	if err := runtime.BindStyledParameterWithOptions("simple", "index", chi.URLParam(r, "index"), &index,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true}); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid format for parameter index: "+err.Error())
		return nil, 0, false
	}
	return d, index, true
}
