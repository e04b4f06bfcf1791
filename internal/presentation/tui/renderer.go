package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/wizards/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// Renderer turns drawer states into terminal output.
type Renderer struct {
	render func(string) (string, error)
}

// NewRenderer returns a Renderer using glamour with an auto-detected style.
// With plain set, markdown is returned as is.
func NewRenderer(plain bool) (*Renderer, error) {
	if plain {
		return &Renderer{render: func(md string) (string, error) { return md, nil }}, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return &Renderer{render: r.Render}, nil
}

// Render renders raw markdown.
func (r *Renderer) Render(markdown string) (string, error) {
	return r.render(markdown)
}

// RenderState renders the whole drawer.
func (r *Renderer) RenderState(s domain.State) (string, error) {
	return r.render(Markdown(s))
}

// StartingMessage is shown until the user picks a path.
const StartingMessage = "I can help you write a query for this metric. " +
	"Do you want me to **walk you through everything** (`historical`) " +
	"or do **you know what you want** (`ai`)?"

// Markdown describes s as a markdown document.
func Markdown(s domain.State) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# `%s`\n\n", s.Query.Selector())

	if s.ShowStartingMessage {
		b.WriteString(StartingMessage + "\n\n")
		box := " "
		if s.IndicateCheckbox {
			box = "x"
		}
		fmt.Fprintf(&b, "- [%s] Don't show this again\n\n", box)
	}

	for i, in := range s.Interactions {
		writeInteraction(&b, i, in)
	}
	return b.String()
}

func writeInteraction(b *strings.Builder, index int, in domain.Interaction) {
	fmt.Fprintf(b, "## %d. %s\n\n", index, title(in.SuggestionType))
	if p := in.PromptText(); p != "" {
		fmt.Fprintf(b, "> %s\n\n", strings.ReplaceAll(p, "\n", "\n> "))
	}

	switch in.Phase() {
	case domain.PhaseLoading:
		b.WriteString("_Loading suggestions..._\n\n")
		return
	case domain.PhaseFailed:
		fmt.Fprintf(b, "**Failed:** %s (`retry %d`)\n\n", in.Failure.Message, index)
	case domain.PhaseIdle:
		if in.SuggestionType == domain.SuggestionAI {
			b.WriteString("_Waiting for a prompt._\n\n")
		} else {
			b.WriteString("_No suggestions._\n\n")
		}
	}

	for j, sug := range in.Suggestions {
		name := sug.Title
		if name == "" {
			name = fmt.Sprintf("Suggestion %d", j)
		}
		if sug.Link != "" {
			fmt.Fprintf(b, "%d. [%s](%s)\n\n", j, name, sug.Link)
		} else {
			fmt.Fprintf(b, "%d. **%s**\n\n", j, name)
		}
		fmt.Fprintf(b, "   ```promql\n   %s\n   ```\n\n", sug.Query)
		if sug.Description != "" {
			fmt.Fprintf(b, "   %s\n\n", sug.Description)
		}
		switch {
		case sug.Explanation != "":
			fmt.Fprintf(b, "   *Explanation:* %s\n\n", sug.Explanation)
		case sug.Explaining:
			b.WriteString("   _Explaining..._\n\n")
		case sug.ExplainFailure != nil:
			fmt.Fprintf(b, "   *Explanation failed:* %s\n\n", sug.ExplainFailure.Message)
		}
	}
}

func title(t domain.SuggestionType) string {
	if t == domain.SuggestionHistorical {
		return "Everything"
	}
	return "Ask"
}
