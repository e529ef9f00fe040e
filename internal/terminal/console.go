// Package terminal renders menus and reads the user's answers. Reads are
// interruptible: a signal on the interrupt channel makes the pending prompt
// return shared.ErrInterrupted.
package terminal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/p-n-ai/pim/internal/shared"
)

const clearScreen = "\033[2J\033[H"

// Console is the presentation layer the application drives.
type Console interface {
	// Menu clears the screen and prints lines framed by separators, with an
	// optional centred title.
	Menu(title string, lines ...string)
	// Message prints lines below whatever is on screen.
	Message(lines ...string)
	// Choose reads one answer from options. Empty input selects def when def
	// is set. Anything else returns shared.ErrInvalidSelection.
	Choose(ctx context.Context, prompt string, options []string, def string) (string, error)
	ReadLine(ctx context.Context, prompt string) (string, error)
	ReadPassword(ctx context.Context, prompt string) (string, error)
	// Pause waits for Enter.
	Pause(ctx context.Context, prompt string) error
}

var titleColor = color.New(color.FgHiCyan, color.Bold)

// RenderMenu writes a menu in the framed layout shared by every screen.
func RenderMenu(w io.Writer, title string, lines []string) {
	width := 0
	for _, l := range lines {
		width = max(width, utf8.RuneCountInString(l))
	}

	var b strings.Builder
	if title != "" {
		label := " " + strings.ToUpper(title) + " "
		width = max(width, utf8.RuneCountInString(label)+2)
		pad := width - utf8.RuneCountInString(label)
		left := pad / 2
		b.WriteString(strings.Repeat("-", left))
		b.WriteString(titleColor.Sprint(label))
		b.WriteString(strings.Repeat("-", pad-left))
	} else {
		b.WriteString(strings.Repeat("-", width))
	}
	b.WriteByte('\n')

	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("-", width))
	b.WriteByte('\n')

	fmt.Fprint(w, b.String())
}

// ParseChoice interprets a typed answer. Input equal to an option wins;
// otherwise the first character decides. Matching is case-insensitive.
func ParseChoice(input string, options []string, def string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		if def != "" {
			return def, nil
		}
		return "", shared.ErrInvalidSelection
	}

	first, _ := utf8.DecodeRuneInString(s)
	for _, candidate := range []string{s, string(first)} {
		for _, opt := range options {
			if strings.ToLower(opt) == candidate {
				return opt, nil
			}
		}
	}
	return "", fmt.Errorf("%q: %w", s, shared.ErrInvalidSelection)
}
