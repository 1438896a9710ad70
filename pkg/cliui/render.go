package cliui

import (
	"fmt"
	"strings"

	"github.com/docweave/weave/pkg/rag"
	"github.com/docweave/weave/pkg/utils"
)

// Citations formats a numbered citation list. Citations that point at the
// same document are listed once.
func (t *Theme) Citations(cites []rag.Citation) string {
	if len(cites) == 0 {
		return ""
	}

	var b strings.Builder
	seen := make(map[string]bool, len(cites))
	n := 0
	for _, c := range cites {
		key := c.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		n++

		title := c.Title
		if title == "" {
			title = c.Location()
		}
		fmt.Fprintf(&b, "  %s %s", t.Muted.Render(fmt.Sprintf("[%d]", n)), t.Citation.Render(title))
		if loc := c.Location(); loc != "" && loc != title {
			fmt.Fprintf(&b, " %s", t.Muted.Render(loc))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Excerpt shortens a passage to one line of at most n runes.
func Excerpt(s string, n int) string {
	return utils.Truncate(strings.Join(strings.Fields(s), " "), n)
}
