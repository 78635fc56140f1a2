// Package prompter reads operator commands from a terminal.
package prompter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/reglet-dev/edge-agent/domain/entities"
)

// Sink receives each trimmed input line.
type Sink interface {
	Push(line string)
}

// CliPrompter reads lines from in and queues them for the main loop.
type CliPrompter struct {
	in     io.Reader
	out    io.Writer
	prompt bool
}

// Option configures a CliPrompter.
type Option func(*CliPrompter)

// WithPrompt overrides whether Run prints the prompt.
func WithPrompt(show bool) Option {
	return func(p *CliPrompter) { p.prompt = show }
}

// NewCliPrompter creates a new CliPrompter. The prompt is printed only when
// in is a terminal unless WithPrompt says otherwise.
func NewCliPrompter(in io.Reader, out io.Writer, opts ...Option) *CliPrompter {
	p := &CliPrompter{in: in, out: out}
	p.prompt = p.IsInteractive()
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsInteractive checks if the input is a terminal.
func (p *CliPrompter) IsInteractive() bool {
	if f, ok := p.in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// Run prints the prompt once, then pushes every line until the input ends or
// ctx is done. A read blocked on the terminal only notices ctx after the
// next line arrives.
func (p *CliPrompter) Run(ctx context.Context, sink Sink) error {
	if p.prompt {
		_, _ = fmt.Fprintln(p.out, entities.Prompt)
	}

	scanner := bufio.NewScanner(p.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		sink.Push(strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read command: %w", err)
	}
	return nil
}
