package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/taskmill/taskmill/internal/ui"
)

// outputJSON writes v as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// outputJSONError writes an error object to stderr for --json consumers.
func outputJSONError(err error) {
	encoder := json.NewEncoder(os.Stderr)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(map[string]string{"error": err.Error()})
}

// info prints a progress line unless output is quiet or machine-readable.
func info(msg string) {
	if quietFlag || jsonOutput {
		return
	}
	fmt.Println(msg)
}

// warnf prints a warning to stderr. Warnings survive --json (they go to
// stderr and never corrupt the stdout document) but not --quiet.
func warnf(format string, args ...interface{}) {
	if quietFlag {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.WarnIcon(), fmt.Sprintf(format, args...))
}

// verbosef prints debug detail when --verbose is set.
func verbosef(format string, args ...interface{}) {
	if !verboseFlag || quietFlag {
		return
	}
	fmt.Fprintf(os.Stderr, "%s\n", ui.Muted(fmt.Sprintf(format, args...)))
}
