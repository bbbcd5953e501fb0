package chat

import (
	"fmt"
	"strings"
	"time"
)

// Render formats entries as numbered article blocks separated by blank lines.
func Render(entries []Entry) string {
	blocks := make([]string, len(entries))
	for i, e := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "Article %d:\n", e.Index)
		fmt.Fprintf(&b, "Title: %s\n", e.Title)
		fmt.Fprintf(&b, "Source: %s\n", e.Source)
		fmt.Fprintf(&b, "Published: %s\n", e.PublishedAt.UTC().Format(time.RFC3339))
		summary := e.Summary
		if summary == "" {
			summary = "(none)"
		}
		fmt.Fprintf(&b, "Summary: %s", summary)
		if e.Body != "" {
			fmt.Fprintf(&b, "\nFull text:\n%s", e.Body)
		}
		blocks[i] = b.String()
	}
	return strings.Join(blocks, "\n\n")
}
