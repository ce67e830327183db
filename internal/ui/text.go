package ui

// Truncate shortens s to at most max runes, appending an ellipsis when
// anything was cut. A max below 2 returns the bare ellipsis for non-empty
// input.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max < 2 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
