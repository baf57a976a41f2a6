package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ErrEmptyInput is returned when the user enters nothing where a value is required
var ErrEmptyInput = errors.New("no input provided")

var promptStyle = lipgloss.NewStyle().
	Foreground(WarningColor).
	Bold(true)

// PromptPassword asks for a secret without echoing it when in is a
// terminal. An empty answer is allowed since open networks have no password.
func PromptPassword(in *os.File, out io.Writer, prompt string) (string, error) {
	_, _ = fmt.Fprint(out, promptStyle.Render(prompt))

	if IsTerminal(in) {
		b, err := term.ReadPassword(int(in.Fd()))
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	return readLine(in)
}

// Prompt asks for a line of input. An empty answer returns ErrEmptyInput.
func Prompt(in io.Reader, out io.Writer, prompt string) (string, error) {
	_, _ = fmt.Fprint(out, promptStyle.Render(prompt))
	line, err := readLine(in)
	if err != nil {
		return "", err
	}
	if line == "" {
		return "", ErrEmptyInput
	}
	return line, nil
}

// Confirm asks a yes/no question. Anything but "y" or "yes" is a no.
func Confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprint(out, promptStyle.Render(question+" [y/N]: "))
	line, err := readLine(in)
	if err != nil {
		_, _ = fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true
	}
	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
