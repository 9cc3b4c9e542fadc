package executor

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// TerminalPrompter reads y/n/q answers line by line.
type TerminalPrompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

// Confirm defaults to AnswerNo on empty input or a read error.
func (p *TerminalPrompter) Confirm(prompt string) Answer {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "%s [y/N/q] ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return AnswerNo
	}
	return ParseAnswer(line)
}

func ParseAnswer(s string) Answer {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return AnswerYes
	case "q", "quit":
		return AnswerQuit
	default:
		return AnswerNo
	}
}

// StaticPrompter always gives the same answer.
type StaticPrompter Answer

func (s StaticPrompter) Confirm(string) Answer { return Answer(s) }
