package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// Prompter reads answers to interactive questions.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter returns a Prompter reading from in and writing prompts to out.
func NewPrompter(in *bufio.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// ReadLine reads one line without printing anything. A final line without a
// newline is returned as is; io.EOF is only returned when nothing was read.
func (p *Prompter) ReadLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Text prints prompt and reads a trimmed line.
func (p *Prompter) Text(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt+": "); err != nil {
		return "", err
	}
	return p.ReadLine()
}

// TextDefault is Text that returns def for an empty answer.
func (p *Prompter) TextDefault(prompt, def string) (string, error) {
	v, err := p.Text(fmt.Sprintf("%s [%s]", prompt, def))
	if err != nil {
		return "", err
	}
	if v == "" {
		return def, nil
	}
	return v, nil
}

// Password reads a secret without echo when stdin is a terminal, and as a
// plain line otherwise.
func (p *Prompter) Password(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt+": "); err != nil {
		return "", err
	}
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return p.ReadLine()
	}
	pw, err := readPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
