// Package expand implements the three-chunk context expander (C2): given an
// ordered chunk list and a hit index, it assembles the immediate neighbors
// without copying chunk content.
package expand

import (
	"fmt"

	"github.com/retrievalfabric/core/internal/fabric/chunk"
	"github.com/retrievalfabric/core/internal/fabric/fabricerr"
)

// Context holds pointers into the caller's chunk slice; Above/Below are nil
// at the file boundaries.
type Context struct {
	Above       *chunk.Chunk
	Target      *chunk.Chunk
	Below       *chunk.Chunk
	TargetIndex int
}

// Expand returns the (above, target, below) window around chunks[targetIndex].
// It never clones chunk content: Above/Below/Target alias the input slice.
func Expand(chunks []chunk.Chunk, targetIndex int) (Context, error) {
	if targetIndex < 0 || targetIndex >= len(chunks) {
		return Context{}, fabricerr.New(fabricerr.NotFound, fmt.Sprintf("chunk index %d out of range [0,%d)", targetIndex, len(chunks)))
	}

	ctx := Context{Target: &chunks[targetIndex], TargetIndex: targetIndex}
	if targetIndex > 0 {
		ctx.Above = &chunks[targetIndex-1]
	}
	if targetIndex < len(chunks)-1 {
		ctx.Below = &chunks[targetIndex+1]
	}
	return ctx, nil
}

// Summary renders a short one-line description of the window, used for
// logging and for the hybrid searcher's result trace.
func (c Context) Summary() string {
	lo, hi := c.Target.StartLine, c.Target.EndLine
	if c.Above != nil {
		lo = c.Above.StartLine
	}
	if c.Below != nil {
		hi = c.Below.EndLine
	}
	return fmt.Sprintf("lines %d-%d (target %d-%d)", lo, hi, c.Target.StartLine, c.Target.EndLine)
}

// Display concatenates above/target/below content in order, for presenting
// context to a caller.
func (c Context) Display() string {
	out := ""
	if c.Above != nil {
		out += c.Above.Content + "\n"
	}
	out += c.Target.Content
	if c.Below != nil {
		out += "\n" + c.Below.Content
	}
	return out
}
