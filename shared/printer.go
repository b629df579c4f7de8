package shared

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Printer renders indented, line-oriented output to one or more writers.
// The voice agent uses it for the live transcript; hooks let callers mirror
// the same output to a file or UI pipe.
type Printer struct {
	mu     sync.Mutex
	indStr string
	hooks  []io.Writer
}

func NewPrinter(indentString string, hooks ...io.Writer) (*Printer, error) {
	if len(hooks) == 0 {
		return nil, errors.New("no hook provided")
	}
	for _, hook := range hooks {
		if hook == nil {
			return nil, errors.New("a nil pointed hook is given")
		}
	}
	return &Printer{indStr: indentString, hooks: hooks}, nil
}

func (p *Printer) Write(s string, ind int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(s, ind)
}

func (p *Printer) Writeln(s string, ind int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.write(s, ind); err != nil {
		return err
	}
	for _, hook := range p.hooks {
		if _, err := io.WriteString(hook, "\n"); err != nil {
			return fmt.Errorf("on writing newline to hook: %w", err)
		}
	}
	return nil
}

func (p *Printer) write(s string, ind int) error {
	indent := strings.Repeat(p.indStr, ind)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		out := indent + line
		if i < len(lines)-1 {
			out += "\n"
		}
		for _, hook := range p.hooks {
			if _, err := io.WriteString(hook, out); err != nil {
				return fmt.Errorf("on writing to hook: %w", err)
			}
		}
	}
	return nil
}
