// internal/scenario/snapshot.go
package scenario

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxSnapshotBytes caps the markup kept in a Result.
const maxSnapshotBytes = 256 << 10

const truncatedMarker = "\n<!-- snapshot truncated -->"

// CleanSnapshot strips scripts, styles and comments from captured markup and caps
// its size. Markup that cannot be parsed is only truncated.
func CleanSnapshot(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return truncate(markup)
	}
	prune(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return truncate(markup)
	}
	return truncate(buf.String())
}

// prune removes noise nodes below n.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && (c.DataAtom == atom.Script || c.DataAtom == atom.Style || c.DataAtom == atom.Noscript):
			n.RemoveChild(c)
		default:
			prune(c)
		}
		c = next
	}
}

func truncate(s string) string {
	if len(s) <= maxSnapshotBytes {
		return s
	}
	cut := maxSnapshotBytes
	// Back up to a rune boundary.
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + truncatedMarker
}
