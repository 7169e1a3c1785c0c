package util

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Prompter reads a secret after showing prompt.  SSH authentication and
// the daemon password flag share it so tests can substitute a fixed
// answer.
type Prompter func(prompt string) ([]byte, error)

// TerminalPrompter reads from the controlling terminal without echo.
func TerminalPrompter(prompt string) ([]byte, error) {
	return readSecret(os.Stdin, os.Stderr, prompt)
}

func readSecret(in *os.File, out io.Writer, prompt string) ([]byte, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("cannot prompt for %q: stdin is not a terminal", prompt)
	}
	fmt.Fprint(out, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	return secret, nil
}

// StaticPrompter always answers with secret.
func StaticPrompter(secret string) Prompter {
	return func(string) ([]byte, error) { return []byte(secret), nil }
}
