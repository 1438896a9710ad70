package cliui

import (
	"os"

	"golang.org/x/term"
)

const defaultWidth = 80

// IsTTY reports whether f is attached to a terminal.
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the column count of the terminal on f, or 80 when f is not a
// terminal.
func Width(f *os.File) int {
	if !IsTTY(f) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// ReadSecret reads a line from the terminal on f without echoing it.
func ReadSecret(f *os.File) (string, error) {
	b, err := term.ReadPassword(int(f.Fd()))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
