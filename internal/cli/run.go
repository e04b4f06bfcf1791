package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/wizards/internal/logging"
	"github.com/aretw0/wizards/internal/presentation/tui"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/drawer"
	"golang.org/x/term"
)

// Sessions is the part of the session manager the chat needs.
type Sessions interface {
	Open(ctx context.Context, query domain.Query) (*drawer.Drawer, error)
	Get(ctx context.Context, id string) (*drawer.Drawer, error)
	Close(ctx context.Context, id string) error
}

// RunOptions contains the configuration of the chat command.
type RunOptions struct {
	Query    domain.Query
	DrawerID string // resume instead of opening a new drawer
	Plain    bool   // raw markdown, no banner
	Version  string
	Logger   *slog.Logger
}

// RunChat opens (or resumes) a drawer and chats with it over in and out.
// Rendering falls back to plain markdown when out is not a terminal.
func RunChat(ctx context.Context, sessions Sessions, opts RunOptions, in io.Reader, out io.Writer) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	plain := opts.Plain || !isTerminal(out)

	renderer, err := tui.NewRenderer(plain)
	if err != nil {
		return err
	}
	if !plain {
		tui.PrintBanner(out, opts.Version)
	}

	var d *drawer.Drawer
	if opts.DrawerID != "" {
		d, err = sessions.Get(ctx, opts.DrawerID)
		if err != nil {
			return fmt.Errorf("failed to resume drawer: %w", err)
		}
		printSystemMessage(out, "Resuming drawer '%s'.", d.ID())
	} else {
		d, err = sessions.Open(ctx, opts.Query)
		if err != nil {
			return err
		}
		printSystemMessage(out, "Drawer '%s' open. Type 'help' for commands.", d.ID())
	}
	logger.Info("Chat started", "drawer_id", d.ID())

	defer func() {
		if err := sessions.Close(context.WithoutCancel(ctx), d.ID()); err != nil {
			logger.Warn("Failed to close drawer", "drawer_id", d.ID(), "err", err)
		}
	}()

	return NewChat(d, renderer, out, WithChatLogger(logger)).Run(ctx, in)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
