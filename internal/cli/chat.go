package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aretw0/wizards/internal/logging"
	"github.com/aretw0/wizards/internal/presentation/tui"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/drawer"
)

const helpText = `Commands:
  ai               I know what I want (start an AI interaction)
  all              Walk me through everything (list the templates)
  check            Toggle "don't show this again"
  hide             Dismiss the starting message
  prompt <text>    Edit the prompt of the current interaction
  submit [n]       Request suggestions for interaction n
  ask <text>       Set the prompt and submit it (plain text does the same)
  everything [n]   Show me everything instead
  retry [n]        Retry a failed request
  explain <s> [n]  Explain suggestion s of interaction n
  next             Start another AI interaction
  show             Render the drawer
  help             Show this help
  quit             Leave the chat`

// Chat drives one drawer from text commands.
type Chat struct {
	d        *drawer.Drawer
	renderer *tui.Renderer
	out      io.Writer
	logger   *slog.Logger
}

// ChatOption configures a Chat.
type ChatOption func(*Chat)

// WithChatLogger configures the logger.
func WithChatLogger(logger *slog.Logger) ChatOption {
	return func(c *Chat) {
		c.logger = logger
	}
}

// NewChat creates a chat over d that writes to out.
func NewChat(d *drawer.Drawer, renderer *tui.Renderer, out io.Writer, opts ...ChatOption) *Chat {
	c := &Chat{
		d:        d,
		renderer: renderer,
		out:      out,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run renders the drawer and executes one command per line of in until
// quit, end of input or ctx cancellation.
func (c *Chat) Run(ctx context.Context, in io.Reader) error {
	if err := c.show(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(NewInterruptibleReader(in, ctx.Done()))
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !isInterrupted(err) {
				return err
			}
			fmt.Fprintln(c.out)
			return nil
		}

		quit, err := c.Exec(ctx, scanner.Text())
		if err != nil {
			if isInterrupted(err) {
				return nil
			}
			c.logger.Debug("Command failed", "drawer_id", c.d.ID(), "err", err)
			printSystemMessage(c.out, "%v", err)
			continue
		}
		if quit {
			return nil
		}
	}
}

// Exec runs a single command line. Errors from the drawer are returned as
// is; the chat stays usable after them.
func (c *Chat) Exec(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	var err error
	switch strings.ToLower(cmd) {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprintln(c.out, helpText)
		return false, nil
	case "show":
	case "ai":
		_, err = c.d.ChooseAI(ctx)
	case "all":
		_, err = c.d.ChooseHistorical(ctx)
	case "check":
		var value bool
		value, err = c.d.ToggleIndicateCheckbox(ctx)
		if err == nil {
			printSystemMessage(c.out, "Don't show this again: %t", value)
		}
	case "hide":
		err = c.d.SetShowStartingMessage(ctx, false)
	case "prompt":
		err = c.withIndex("", func(i int) error { return c.d.SetPrompt(ctx, i, rest) })
	case "submit":
		err = c.withIndex(rest, func(i int) error { return c.d.Submit(ctx, i) })
	case "ask":
		err = c.ask(ctx, rest)
	case "everything":
		err = c.withIndex(rest, func(i int) error { return c.d.ShowEverything(ctx, i) })
	case "retry":
		err = c.withIndex(rest, func(i int) error { return c.d.Retry(ctx, i) })
	case "explain":
		err = c.explain(ctx, rest)
	case "next":
		_, err = c.d.NextInteraction(ctx)
	default:
		err = c.ask(ctx, line)
	}
	if err != nil {
		return false, err
	}

	if err := c.wait(ctx); err != nil {
		return false, err
	}
	return false, c.show()
}

// ask sends prompt on the current AI interaction, starting one when the
// current interaction cannot take a new prompt.
func (c *Chat) ask(ctx context.Context, prompt string) error {
	if prompt == "" {
		return fmt.Errorf("%w: nothing to ask", domain.ErrEmptyPrompt)
	}
	s := c.d.State()
	index := len(s.Interactions) - 1
	switch {
	case index < 0:
		i, err := c.d.ChooseAI(ctx)
		if err != nil {
			return err
		}
		index = i
	case s.Interactions[index].SuggestionType != domain.SuggestionAI || s.Interactions[index].Phase() != domain.PhaseIdle:
		i, err := c.d.NextInteraction(ctx)
		if err != nil {
			return err
		}
		index = i
	}
	if err := c.d.SetPrompt(ctx, index, prompt); err != nil {
		return err
	}
	return c.d.Submit(ctx, index)
}

func (c *Chat) explain(ctx context.Context, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return errors.New("usage: explain <suggestion> [interaction]")
	}
	sug, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("invalid suggestion %q", fields[0])
	}
	var arg string
	if len(fields) > 1 {
		arg = fields[1]
	}
	return c.withIndex(arg, func(i int) error {
		_, err := c.d.Explain(ctx, i, sug)
		return err
	})
}

// withIndex resolves arg to an interaction index, defaulting to the last one.
func (c *Chat) withIndex(arg string, fn func(int) error) error {
	if arg == "" {
		n := len(c.d.State().Interactions)
		if n == 0 {
			return fmt.Errorf("%w: no interaction yet, type 'ai' or 'all'", domain.ErrInvalidIndex)
		}
		return fn(n - 1)
	}
	i, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidIndex, arg)
	}
	return fn(i)
}

// wait blocks until the drawer has no outstanding request.
func (c *Chat) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.d.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Chat) show() error {
	out, err := c.renderer.RenderState(c.d.State())
	if err != nil {
		return fmt.Errorf("failed to render drawer: %w", err)
	}
	fmt.Fprint(c.out, out)
	return nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}
