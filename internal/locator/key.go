// File: internal/locator/key.go
package locator

import (
	"fmt"
	"strings"
)

// Position is a pair of page coordinates supplied by a context provider.
type Position struct {
	X int
	Y int
}

// ElementContext carries optional page-context hints used to disambiguate
// two targets that share a raw locator and description.
type ElementContext struct {
	ParentContainer string
	RelativePos     *Position
	SiblingElements []string
}

// Key derives the stable cache key for a logical target. The parts appear in
// a fixed order, pipe-delimited, so the same inputs always produce the same
// key.
func Key(kind Kind, raw, description string) string {
	return kind.ReportName() + "|" + ContextualKey(raw, description, nil)
}

// ContextualKey derives a cache key from the raw locator and description,
// extended with parent, position and sibling identity when a context is
// present.
func ContextualKey(raw, description string, ctx *ElementContext) string {
	var b strings.Builder
	b.WriteString(raw)
	b.WriteString("|")
	b.WriteString(description)

	if ctx != nil {
		if ctx.ParentContainer != "" {
			b.WriteString("|parent:")
			b.WriteString(ctx.ParentContainer)
		}
		if ctx.RelativePos != nil {
			fmt.Fprintf(&b, "|pos:%d,%d", ctx.RelativePos.X, ctx.RelativePos.Y)
		}
		if len(ctx.SiblingElements) > 0 {
			b.WriteString("|siblings:")
			b.WriteString(strings.Join(ctx.SiblingElements, ","))
		}
	}
	return b.String()
}
