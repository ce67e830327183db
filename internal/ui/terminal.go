package ui

import (
	"os"

	"golang.org/x/term"
)

// colorMode forces color handling on or off for the process. nil means
// environment-based detection.
var colorMode *bool

// SetColor forces color output on or off. The CLI calls it for --no-color
// and machine-readable modes.
func SetColor(enabled bool) {
	colorMode = &enabled
}

// ResetColor restores environment-based detection.
func ResetColor() {
	colorMode = nil
}

// ShouldUseColor reports whether output should carry ANSI styling.
//
// Precedence: explicit SetColor, then NO_COLOR (presence disables, per the
// informal standard), then CLICOLOR_FORCE, then CLICOLOR=0, then whether
// stdout is a terminal.
func ShouldUseColor() bool {
	if colorMode != nil {
		return *colorMode
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	if force := os.Getenv("CLICOLOR_FORCE"); force != "" && force != "0" {
		return true
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	return IsTerminal()
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
