package internal

import (
	"fmt"
	"io"
	"strings"
)

// Logf writes a single log line, prefixed with the component name and the
// configuration it belongs to when provided.
func Logf(w io.Writer, prefix, configID string, format string, a ...any) {
	parts := []string{}
	if prefix != "" {
		parts = append(parts, prefix)
	}
	if configID != "" {
		parts = append(parts, fmt.Sprintf("[%s]", configID))
	}
	parts = append(parts, fmt.Sprintf(format, a...))
	fmt.Fprintln(w, strings.Join(parts, " "))
}
