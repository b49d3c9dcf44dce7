package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/samcharles93/gltr/internal/gltr"
	"github.com/samcharles93/gltr/internal/surface"
)

const colorReset = "\x1b[0m"

// buckets group ranks the way the GLTR front-end colors them.
var buckets = []struct {
	limit int
	name  string
	color string
}{
	{10, "top-10", "\x1b[32m"},
	{100, "top-100", "\x1b[33m"},
	{1000, "top-1000", "\x1b[31m"},
	{math.MaxInt, "rest", "\x1b[35m"},
}

func bucketOf(rank int) int {
	for i, b := range buckets {
		if rank < b.limit {
			return i
		}
	}
	return len(buckets) - 1
}

// display turns a surface token back into the text it stands for.
func display(tok string) string {
	tok = strings.ReplaceAll(tok, surface.BreakMarker, "\n")
	return strings.ReplaceAll(tok, surface.SpaceMarker, " ")
}

// renderPretty writes the text with every evaluated token colored by its rank
// bucket, followed by a per-bucket count. Without color each evaluated token
// is followed by its rank in brackets.
func renderPretty(w io.Writer, p *gltr.Payload, color bool) error {
	var b strings.Builder
	for _, tok := range p.Lead {
		b.WriteString(display(tok))
	}
	counts := make([]int, len(buckets))
	for i, tok := range p.Tokens {
		rank := p.Ranks[i].Rank
		bk := bucketOf(rank)
		counts[bk]++
		text := display(tok)
		if color {
			lead := text[:len(text)-len(strings.TrimLeft(text, " \n"))]
			b.WriteString(lead)
			b.WriteString(buckets[bk].color)
			b.WriteString(text[len(lead):])
			b.WriteString(colorReset)
			continue
		}
		fmt.Fprintf(&b, "%s[%d]", text, rank)
	}
	b.WriteString("\n\n")
	for i, bk := range buckets {
		name := bk.name
		if color {
			name = bk.color + name + colorReset
		}
		fmt.Fprintf(&b, "%s: %d", name, counts[i])
		if i < len(buckets)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
