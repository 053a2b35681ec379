/*
Package prompt provides interactive input for fwrelease.

Selection and credential entry go through the Prompter interface so the
pipeline can run from a terminal, from CI with every value given as a flag, or
from tests with scripted answers.
*/
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

var (
	// ErrNonInteractive is returned when input is required but prompting is disabled.
	ErrNonInteractive = errors.New("input required but prompting is disabled")

	// ErrInvalidIndex is returned when a selection answer is not a valid index.
	ErrInvalidIndex = errors.New("invalid index")
)

// Prompter asks the user for values
type Prompter interface {
	// Input reads one line of text
	Input(msg string) (string, error)

	// Password reads one line without echoing it
	Password(msg string) (string, error)

	// Select shows the enumerated options and returns the chosen index
	Select(msg string, options []string) (int, error)
}

// Terminal prompts on a terminal
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

// NewTerminal creates a prompter reading stdin and writing to stderr
func NewTerminal() *Terminal {
	return &Terminal{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stderr,
		fd:  int(os.Stdin.Fd()),
	}
}

// Input reads a line of text, trimming surrounding whitespace
func (t *Terminal) Input(msg string) (string, error) {
	line, err := t.readLine(msg)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password reads a line with echo disabled when stdin is a terminal. Only
// the line ending is removed.
func (t *Terminal) Password(msg string) (string, error) {
	if !isatty.IsTerminal(uintptr(t.fd)) {
		return t.readLine(msg)
	}

	fmt.Fprintf(t.out, "%s: ", msg)
	bytePassword, err := term.ReadPassword(t.fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(string(bytePassword), "\r\n"), nil
}

func (t *Terminal) readLine(msg string) (string, error) {
	fmt.Fprintf(t.out, "\n%s: ", msg)
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Select prints the options with their index and reads an index
func (t *Terminal) Select(msg string, options []string) (int, error) {
	for idx, val := range options {
		fmt.Fprintf(t.out, "    %d: %s\n", idx, val)
	}

	answer, err := t.Input(msg)
	if err != nil {
		return 0, err
	}
	return ParseIndex(answer, len(options))
}

// ParseIndex converts an answer into an index below n
func ParseIndex(answer string, n int) (int, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidIndex, answer)
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("%w %d, expected 0 to %d", ErrInvalidIndex, idx, n-1)
	}
	return idx, nil
}

// Disabled refuses every prompt
type Disabled struct{}

func (Disabled) Input(msg string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrNonInteractive, msg)
}

func (Disabled) Password(msg string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrNonInteractive, msg)
}

func (Disabled) Select(msg string, options []string) (int, error) {
	return 0, fmt.Errorf("%w: %s", ErrNonInteractive, msg)
}

// Scripted answers prompts from a fixed list, in order
type Scripted struct {
	Answers []string

	// Asked records every prompt message
	Asked []string
}

// NewScripted creates a prompter returning answers in order
func NewScripted(answers ...string) *Scripted {
	return &Scripted{Answers: answers}
}

func (s *Scripted) next(msg string) (string, error) {
	s.Asked = append(s.Asked, msg)
	if len(s.Answers) == 0 {
		return "", fmt.Errorf("%w: no answer left for %q", ErrNonInteractive, msg)
	}
	answer := s.Answers[0]
	s.Answers = s.Answers[1:]
	return answer, nil
}

func (s *Scripted) Input(msg string) (string, error) {
	return s.next(msg)
}

func (s *Scripted) Password(msg string) (string, error) {
	return s.next(msg)
}

func (s *Scripted) Select(msg string, options []string) (int, error) {
	answer, err := s.next(msg)
	if err != nil {
		return 0, err
	}
	return ParseIndex(answer, len(options))
}
