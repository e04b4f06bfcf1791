// Package mcp exposes drawers as Model Context Protocol tools, so an agent
// can walk the same onboarding, suggestion and explanation flows as a user.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/wizards"
	"github.com/aretw0/wizards/internal/logging"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/drawer"
	"github.com/aretw0/wizards/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Resource URIs.
const (
	DrawersURI   = "wizards://drawers"
	TemplatesURI = "wizards://templates"
)

// Sessions is the drawer registry the server drives. *session.Manager implements it.
type Sessions interface {
	Open(ctx context.Context, query domain.Query) (*drawer.Drawer, error)
	Get(ctx context.Context, id string) (*drawer.Drawer, error)
	Close(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// DrawerResult aligns with the HTTP API and provides a unified structure across adapters.
type DrawerResult struct {
	ID    string       `json:"id" jsonschema_description:"The drawer ID to pass to later tools"`
	Index int          `json:"index" jsonschema_description:"The interaction the tool created or touched, -1 if none"`
	State domain.State `json:"state" jsonschema_description:"The drawer state after the tool ran"`
}

// ExplainResult carries an explanation.
type ExplainResult struct {
	Query       string `json:"query" jsonschema_description:"The explained query"`
	Explanation string `json:"explanation" jsonschema_description:"Plain-language explanation"`
}

// Server wraps the session manager and exposes it as an MCP Server.
type Server struct {
	sessions  Sessions
	templates ports.TemplateSource
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTemplates exposes the template set as the wizards://templates resource.
func WithTemplates(templates ports.TemplateSource) Option {
	return func(s *Server) {
		s.templates = templates
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions Sessions, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("wizards-mcp", strings.TrimSpace(wizards.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when
// ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Tool arguments.

type OpenArgs struct {
	Metric string `json:"metric"`
	Labels string `json:"labels,omitempty"`
}

type DrawerArgs struct {
	DrawerID string `json:"drawer_id"`
}

type ChooseArgs struct {
	DrawerID string `json:"drawer_id"`
	Type     string `json:"type"`
}

type CheckboxArgs struct {
	DrawerID string `json:"drawer_id"`
	Value    bool   `json:"value"`
}

type InteractionArgs struct {
	DrawerID string `json:"drawer_id"`
	Index    int    `json:"index"`
	Prompt   string `json:"prompt,omitempty"`
	Wait     bool   `json:"wait,omitempty"`
}

type ExplainArgs struct {
	DrawerID   string `json:"drawer_id"`
	Index      int    `json:"index"`
	Suggestion int    `json:"suggestion"`
}

func (s *Server) registerTools() {
	drawerID := mcp.WithString("drawer_id", mcp.Required(), mcp.Description("Drawer ID returned by open_drawer"))
	index := mcp.WithNumber("index", mcp.Required(), mcp.Description("Interaction index"))
	wait := mcp.WithBoolean("wait", mcp.Description("Block until the suggestions arrive"))

	s.mcpServer.AddTool(mcp.NewTool("open_drawer",
		mcp.WithDescription("Open a query-assist drawer for a metric."),
		mcp.WithString("metric", mcp.Required(), mcp.Description("Metric name, e.g. http_requests_total")),
		mcp.WithString("labels", mcp.Description(`JSON array of label matchers, e.g. [{"label":"job","op":"=","value":"api"}]`)),
		mcp.WithOutputSchema[DrawerResult](),
	), mcp.NewStructuredToolHandler(s.handleOpen))

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Return the current state of a drawer."),
		drawerID,
		mcp.WithOutputSchema[DrawerResult](),
	), mcp.NewStructuredToolHandler(s.handleGetState))

	s.mcpServer.AddTool(mcp.NewTool("set_checkbox",
		mcp.WithDescription(`Set the "don't show the starting message again" preference.`),
		drawerID,
		mcp.WithBoolean("value", mcp.Required()),
		mcp.WithOutputSchema[DrawerResult](),
	), mcp.NewStructuredToolHandler(s.handleSetCheckbox))

	s.mcpServer.AddTool(mcp.NewTool("choose",
		mcp.WithDescription(`Dismiss the starting message and pick a flow: "historical" walks through every template, "ai" waits for a prompt.`),
		drawerID,
		mcp.WithString("type", mcp.Required(), mcp.Enum(string(domain.SuggestionAI), string(domain.SuggestionHistorical))),
		mcp.WithOutputSchema[DrawerResult](),
	), mcp.NewStructuredToolHandler(s.handleChoose))

	s.mcpServer.AddTool(mcp.NewTool("next_interaction",
		mcp.WithDescription("Append another empty AI interaction."),
		drawerID,
		mcp.WithOutputSchema[DrawerResult](),
	), mcp.NewStructuredToolHandler(s.handleNext))

	s.mcpServer.AddTool(mcp.NewTool("submit_prompt",
		mcp.WithDescription("Set the prompt of an AI interaction (if given) and request suggestions."),
		drawerID, index, wait,
		mcp.WithString("prompt", mcp.Description("Prompt text; keeps the current prompt when omitted")),
		mcp.WithOutputSchema[DrawerResult](),
	), mcp.NewStructuredToolHandler(s.handleSubmit))

	s.mcpServer.AddTool(mcp.NewTool("show_everything",
		mcp.WithDescription("Replace an interaction with the historical flow and fetch every template."),
		drawerID, index, wait,
		mcp.WithOutputSchema[DrawerResult](),
	), mcp.NewStructuredToolHandler(s.handleShowEverything))

	s.mcpServer.AddTool(mcp.NewTool("retry",
		mcp.WithDescription("Retry the failed suggestion request of an interaction."),
		drawerID, index, wait,
		mcp.WithOutputSchema[DrawerResult](),
	), mcp.NewStructuredToolHandler(s.handleRetry))

	s.mcpServer.AddTool(mcp.NewTool("explain",
		mcp.WithDescription("Explain a suggested query. Explanations are cached per suggestion."),
		drawerID, index,
		mcp.WithNumber("suggestion", mcp.Required(), mcp.Description("Suggestion index within the interaction")),
		mcp.WithOutputSchema[ExplainResult](),
	), mcp.NewStructuredToolHandler(s.handleExplain))

	s.mcpServer.AddTool(mcp.NewTool("close_drawer",
		mcp.WithDescription("Close a drawer. Its snapshot is kept when a store is configured."),
		drawerID,
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("drawer_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.sessions.Close(ctx, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("close failed: %v", err)), nil
		}
		return mcp.NewToolResultText("closed " + id), nil
	})
}

func (s *Server) handleOpen(ctx context.Context, _ mcp.CallToolRequest, args OpenArgs) (DrawerResult, error) {
	query := domain.Query{Metric: strings.TrimSpace(args.Metric)}
	if query.Metric == "" {
		return DrawerResult{}, fmt.Errorf("metric is required")
	}
	if args.Labels != "" {
		if err := json.Unmarshal([]byte(args.Labels), &query.Labels); err != nil {
			return DrawerResult{}, fmt.Errorf("invalid labels: %w", err)
		}
	}
	d, err := s.sessions.Open(ctx, query)
	if err != nil {
		return DrawerResult{}, fmt.Errorf("open failed: %w", err)
	}
	return result(d, -1), nil
}

func (s *Server) handleGetState(ctx context.Context, _ mcp.CallToolRequest, args DrawerArgs) (DrawerResult, error) {
	d, err := s.sessions.Get(ctx, args.DrawerID)
	if err != nil {
		return DrawerResult{}, err
	}
	return result(d, -1), nil
}

func (s *Server) handleSetCheckbox(ctx context.Context, _ mcp.CallToolRequest, args CheckboxArgs) (DrawerResult, error) {
	d, err := s.sessions.Get(ctx, args.DrawerID)
	if err != nil {
		return DrawerResult{}, err
	}
	if err := d.SetIndicateCheckbox(ctx, args.Value); err != nil {
		return DrawerResult{}, err
	}
	return result(d, -1), nil
}

func (s *Server) handleChoose(ctx context.Context, _ mcp.CallToolRequest, args ChooseArgs) (DrawerResult, error) {
	d, err := s.sessions.Get(ctx, args.DrawerID)
	if err != nil {
		return DrawerResult{}, err
	}

	var index int
	switch domain.SuggestionType(args.Type) {
	case domain.SuggestionHistorical:
		index, err = d.ChooseHistorical(ctx)
		if err == nil {
			d.Wait()
		}
	case domain.SuggestionAI:
		index, err = d.ChooseAI(ctx)
	default:
		return DrawerResult{}, fmt.Errorf("unknown suggestion type %q", args.Type)
	}
	if err != nil {
		return DrawerResult{}, err
	}
	return result(d, index), nil
}

func (s *Server) handleNext(ctx context.Context, _ mcp.CallToolRequest, args DrawerArgs) (DrawerResult, error) {
	d, err := s.sessions.Get(ctx, args.DrawerID)
	if err != nil {
		return DrawerResult{}, err
	}
	index, err := d.NextInteraction(ctx)
	if err != nil {
		return DrawerResult{}, err
	}
	return result(d, index), nil
}

func (s *Server) handleSubmit(ctx context.Context, _ mcp.CallToolRequest, args InteractionArgs) (DrawerResult, error) {
	return s.fetch(ctx, args, func(d *drawer.Drawer) error {
		if args.Prompt != "" {
			if err := d.SetPrompt(ctx, args.Index, args.Prompt); err != nil {
				return err
			}
		}
		return d.Submit(ctx, args.Index)
	})
}

func (s *Server) handleShowEverything(ctx context.Context, _ mcp.CallToolRequest, args InteractionArgs) (DrawerResult, error) {
	return s.fetch(ctx, args, func(d *drawer.Drawer) error {
		return d.ShowEverything(ctx, args.Index)
	})
}

func (s *Server) handleRetry(ctx context.Context, _ mcp.CallToolRequest, args InteractionArgs) (DrawerResult, error) {
	return s.fetch(ctx, args, func(d *drawer.Drawer) error {
		return d.Retry(ctx, args.Index)
	})
}

func (s *Server) fetch(ctx context.Context, args InteractionArgs, fn func(*drawer.Drawer) error) (DrawerResult, error) {
	d, err := s.sessions.Get(ctx, args.DrawerID)
	if err != nil {
		return DrawerResult{}, err
	}
	if err := fn(d); err != nil {
		s.logger.Debug("MCP tool rejected", "drawer_id", args.DrawerID, "index", args.Index, "err", err)
		return DrawerResult{}, err
	}
	if args.Wait {
		d.Wait()
	}
	return result(d, args.Index), nil
}

func (s *Server) handleExplain(ctx context.Context, _ mcp.CallToolRequest, args ExplainArgs) (ExplainResult, error) {
	d, err := s.sessions.Get(ctx, args.DrawerID)
	if err != nil {
		return ExplainResult{}, err
	}
	explanation, err := d.Explain(ctx, args.Index, args.Suggestion)
	if err != nil {
		return ExplainResult{}, err
	}
	var query string
	if in, ok := d.State().At(args.Index); ok && args.Suggestion < len(in.Suggestions) {
		query = in.Suggestions[args.Suggestion].Query
	}
	return ExplainResult{Query: query, Explanation: explanation}, nil
}

func result(d *drawer.Drawer, index int) DrawerResult {
	return DrawerResult{ID: d.ID(), Index: index, State: d.State()}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(DrawersURI, "Open and stored drawers",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.sessions.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list drawers: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      DrawersURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	if s.templates == nil {
		return
	}
	s.mcpServer.AddResource(mcp.NewResource(TemplatesURI, "Historical query templates",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		templates, err := s.templates.Templates(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load templates: %w", err)
		}
		jsonBytes, _ := json.Marshal(templates)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      TemplatesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
