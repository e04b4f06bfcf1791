package drawer

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxPromptSize is 4KB.
	DefaultMaxPromptSize = 4096
	// EnvMaxPromptSize overrides DefaultMaxPromptSize.
	EnvMaxPromptSize = "WIZARDS_MAX_PROMPT_SIZE"
)

var (
	ErrPromptTooLarge = errors.New("prompt exceeds maximum allowed size")
	ErrInvalidUTF8    = errors.New("prompt contains invalid UTF-8 sequences")
)

// SanitizePrompt enforces the size limit, validates UTF-8, strips control
// characters other than newline and tab, and trims surrounding whitespace.
// Oversized prompts are rejected, never truncated.
func SanitizePrompt(prompt string) (string, error) {
	limit := maxPromptSize()
	if len(prompt) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrPromptTooLarge, len(prompt), limit)
	}
	if !utf8.ValidString(prompt) {
		return "", ErrInvalidUTF8
	}

	var b strings.Builder
	b.Grow(len(prompt))
	for _, r := range prompt {
		switch {
		case r == '\r':
			// CRLF collapses to LF.
		case unicode.IsControl(r) && r != '\n' && r != '\t':
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func maxPromptSize() int {
	if val := os.Getenv(EnvMaxPromptSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxPromptSize
}
