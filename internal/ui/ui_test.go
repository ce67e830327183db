package ui

import (
	"os"
	"strings"
	"testing"
)

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name          string
		noColor       *string // nil = unset
		cliColor      string
		cliColorForce string
		want          bool
		ttyDependent  bool // expected value only holds off-TTY
	}{
		{
			name:    "NO_COLOR disables color",
			noColor: str("1"),
			want:    false,
		},
		{
			name:    "empty NO_COLOR still disables",
			noColor: str(""),
			want:    false,
		},
		{
			name:     "CLICOLOR=0 disables color",
			cliColor: "0",
			want:     false,
		},
		{
			name:          "CLICOLOR_FORCE enables color off-TTY",
			cliColorForce: "1",
			want:          true,
		},
		{
			name:          "NO_COLOR beats CLICOLOR_FORCE",
			noColor:       str("1"),
			cliColorForce: "1",
			want:          false,
		},
		{
			name:         "default follows TTY state",
			want:         false,
			ttyDependent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, name := range []string{"NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE"} {
				t.Setenv(name, "")
				os.Unsetenv(name)
			}
			if tt.noColor != nil {
				os.Setenv("NO_COLOR", *tt.noColor)
			}
			if tt.cliColor != "" {
				os.Setenv("CLICOLOR", tt.cliColor)
			}
			if tt.cliColorForce != "" {
				os.Setenv("CLICOLOR_FORCE", tt.cliColorForce)
			}

			got := ShouldUseColor()
			if tt.ttyDependent && IsTerminal() {
				t.Skip("requires a non-TTY stdout")
			}
			if got != tt.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func str(s string) *string { return &s }

func TestSetColorOverridesEnvironment(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	SetColor(true)
	defer ResetColor()
	if !ShouldUseColor() {
		t.Error("SetColor(true) should win over NO_COLOR")
	}

	SetColor(false)
	if ShouldUseColor() {
		t.Error("SetColor(false) should disable color")
	}
}

func TestStylesBypassWhenColorOff(t *testing.T) {
	SetColor(false)
	defer ResetColor()

	for name, fn := range map[string]func(string) string{
		"Pass":   Pass,
		"Warn":   Warn,
		"Fail":   Fail,
		"Muted":  Muted,
		"Accent": Accent,
		"Header": Header,
	} {
		if got := fn("plain"); got != "plain" {
			t.Errorf("%s(plain) with color off = %q, want unstyled", name, got)
		}
	}

	if got := Rule(); got != Separator {
		t.Errorf("Rule() with color off = %q, want bare separator", got)
	}
}

func TestRenderMarkdownFallsBackWhenColorOff(t *testing.T) {
	SetColor(false)
	defer ResetColor()

	doc := "# Title\n\nbody text\n"
	if got := RenderMarkdown(doc); got != doc {
		t.Errorf("RenderMarkdown with color off = %q, want raw document", got)
	}
}

func TestRenderMarkdownStyled(t *testing.T) {
	SetColor(true)
	defer ResetColor()

	got := RenderMarkdown("# Title\n\nbody text\n")
	if !strings.Contains(got, "Title") {
		t.Errorf("RenderMarkdown lost the heading text: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"a longer sentence", 8, "a longe…"},
		{"héllo wörld", 6, "héllo…"},
		{"ab", 1, "…"},
		{"", 4, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
