package util

import (
	"fmt"
	"strings"
)

// ExtractSnippet returns the [start,end] region plus maxLines/2 lines of
// context on each side, numbered, with the region marked by '>'.
func ExtractSnippet(content string, start, end, maxLines int) string {
	if content == "" {
		return ""
	}
	if maxLines <= 0 {
		maxLines = 8
	}
	lines := strings.Split(content, "\n")
	if start < 1 {
		start = 1
	}
	if start > len(lines) {
		return ""
	}
	end = min(max(end, start), len(lines))
	from := max(1, start-maxLines/2)
	to := min(len(lines), end+maxLines/2)
	width := len(fmt.Sprint(to))

	var b strings.Builder
	for n := from; n <= to; n++ {
		mark := " "
		if n >= start && n <= end {
			mark = ">"
		}
		fmt.Fprintf(&b, "%s %*d | %s", mark, width, n, strings.TrimRight(lines[n-1], " \t\r"))
		if n < to {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
