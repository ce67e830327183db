// Package ui styles taskmill's terminal output. Every styling entry point
// degrades to plain text when color is off, so piped output stays clean.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Ayu palette, light and dark terminal variants.
var (
	ColorPass   = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

// Semantic styles, shared by every command. HeaderStyle marks section
// headers in summaries.
var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

// Status icons used in check and sync summaries.
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
	IconInfo = "ℹ"
)

// Separator is the section divider in terminal summaries.
const Separator = "──────────────────────────────────────────"

// render applies a style only when color output is active, so piped and
// JSON output stays clean.
func render(style lipgloss.Style, s string) string {
	if !ShouldUseColor() {
		return s
	}
	return style.Render(s)
}

// Pass renders text in the pass (green) style.
func Pass(s string) string { return render(PassStyle, s) }

// Warn renders text in the warning (yellow) style.
func Warn(s string) string { return render(WarnStyle, s) }

// Fail renders text in the fail (red) style.
func Fail(s string) string { return render(FailStyle, s) }

// Muted renders text in the muted (gray) style.
func Muted(s string) string { return render(MutedStyle, s) }

// Accent renders text in the accent (blue) style.
func Accent(s string) string { return render(AccentStyle, s) }

// Header renders a section header.
func Header(s string) string { return render(HeaderStyle, s) }

// PassIcon returns the styled pass icon.
func PassIcon() string { return Pass(IconPass) }

// WarnIcon returns the styled warning icon.
func WarnIcon() string { return Warn(IconWarn) }

// FailIcon returns the styled fail icon.
func FailIcon() string { return Fail(IconFail) }

// SkipIcon returns the styled skip icon.
func SkipIcon() string { return Muted(IconSkip) }

// InfoIcon returns the styled info icon.
func InfoIcon() string { return Accent(IconInfo) }

// Rule returns the muted section divider.
func Rule() string { return Muted(Separator) }
