package ui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// maxReadableWidth caps word wrap; wider report lines are hard to scan.
const maxReadableWidth = 100

// RenderMarkdown renders doc for the terminal using glamour. With color off,
// or when rendering fails, the raw markdown comes back unchanged so previews
// stay usable in pipes.
func RenderMarkdown(doc string) string {
	if !ShouldUseColor() {
		return doc
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(previewWidth()),
	)
	if err != nil {
		return doc
	}
	out, err := r.Render(doc)
	if err != nil {
		return doc
	}
	return out
}

func previewWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return min(w, maxReadableWidth)
}
