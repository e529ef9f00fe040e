package terminal

import (
	"context"
	"strings"
	"sync"

	"github.com/p-n-ai/pim/internal/shared"
)

// Interrupt in a Script's input stands for the user pressing Ctrl+C.
const Interrupt = "^C"

// Screen is one menu drawn on a Script.
type Screen struct {
	Title string
	Lines []string
}

// Script is a Console test double. It replays Inputs in order and records
// what was drawn. When the inputs run out every prompt is interrupted, so a
// control loop driven by a Script always terminates.
type Script struct {
	mu      sync.Mutex
	inputs  []string
	Screens []Screen
	Prompts []string
	Output  []string
}

// NewScript creates a script that answers prompts with inputs.
func NewScript(inputs ...string) *Script {
	return &Script{inputs: inputs}
}

func (s *Script) Menu(title string, lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Screens = append(s.Screens, Screen{Title: title, Lines: append([]string(nil), lines...)})
}

func (s *Script) Message(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Output = append(s.Output, lines...)
}

func (s *Script) Choose(ctx context.Context, prompt string, options []string, def string) (string, error) {
	line, err := s.ReadLine(ctx, prompt)
	if err != nil {
		return "", err
	}
	return ParseChoice(line, options, def)
}

func (s *Script) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, prompt)
	if len(s.inputs) == 0 {
		return "", shared.ErrInterrupted
	}
	in := s.inputs[0]
	s.inputs = s.inputs[1:]
	if in == Interrupt {
		return "", shared.ErrInterrupted
	}
	return in, nil
}

func (s *Script) ReadPassword(ctx context.Context, prompt string) (string, error) {
	return s.ReadLine(ctx, prompt)
}

func (s *Script) Pause(ctx context.Context, prompt string) error {
	_, err := s.ReadLine(ctx, prompt)
	return err
}

// Remaining returns how many inputs were not consumed.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

// Titles lists the titles of every drawn screen.
func (s *Script) Titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	titles := make([]string, len(s.Screens))
	for i, sc := range s.Screens {
		titles[i] = sc.Title
	}
	return titles
}

// Printed reports whether any drawn screen or message contains text.
func (s *Script) Printed(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.Screens {
		for _, l := range sc.Lines {
			if strings.Contains(l, text) {
				return true
			}
		}
	}
	for _, l := range s.Output {
		if strings.Contains(l, text) {
			return true
		}
	}
	return false
}
