// Package human is the synchronous human-input channel leaf capabilities
// relay questions through.
package human

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Channel forwards a query to a human and returns the literal reply.
type Channel interface {
	Ask(ctx context.Context, query string) (string, error)
}

// Console asks on an interactive terminal.
type Console struct {
	in  io.Reader
	out io.Writer
}

// NewConsole creates a console channel over stdin/stdout. It fails when
// stdin is not a terminal: a non-interactive run has no human to ask.
func NewConsole() (*Console, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return nil, errors.New("human channel requires an interactive terminal")
	}
	return &Console{in: os.Stdin, out: os.Stdout}, nil
}

// NewConsoleWith creates a console channel over explicit streams.
func NewConsoleWith(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

// Ask prints the query and blocks for one line of input.
func (c *Console) Ask(ctx context.Context, query string) (string, error) {
	fmt.Fprintf(c.out, "\n%s\n> ", query)

	type lineResult struct {
		text string
		err  error
	}
	lines := make(chan lineResult, 1)
	go func() {
		reader := bufio.NewReader(c.in)
		text, err := reader.ReadString('\n')
		lines <- lineResult{strings.TrimRight(text, "\r\n"), err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-lines:
		if result.err != nil && result.err != io.EOF {
			return "", result.err
		}
		return result.text, nil
	}
}

// Scripted is a test channel replaying canned replies.
type Scripted struct {
	Replies []string
	Asked   []string
}

// Ask pops the next scripted reply.
func (s *Scripted) Ask(ctx context.Context, query string) (string, error) {
	s.Asked = append(s.Asked, query)
	if len(s.Replies) == 0 {
		return "", errors.New("scripted human: no more replies available")
	}
	reply := s.Replies[0]
	s.Replies = s.Replies[1:]
	return reply, nil
}
