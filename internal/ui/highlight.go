package ui

import (
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

// HighlightSQL renders SQL with ANSI colors. If the lexer fails the code is
// returned dimmed instead.
func HighlightSQL(code string) string {
	if strings.TrimSpace(code) == "" {
		return code
	}
	var buf strings.Builder
	if err := quick.Highlight(&buf, code, "sql", "terminal256", "monokai"); err != nil {
		return DimStyle.Render(code)
	}
	return strings.TrimRight(buf.String(), "\n")
}
