package chunk

import (
	"regexp"
	"strings"
)

// boundaryPattern matches a line that opens a new function/method/class-like
// definition across the recognized languages. Detection is regex-level, not
// a full parse: false positives are acceptable, false negatives only cost a
// slightly larger chunk.
var boundaryPattern = regexp.MustCompile(strings.Join([]string{
	`^\s*(pub\s+)?(async\s+)?fn\s+\w+`,          // rust
	`^\s*def\s+\w+`,                             // python
	`^\s*(export\s+)?(default\s+)?(async\s+)?function\b`, // javascript/typescript
	`^\s*(export\s+)?(default\s+)?class\s+\w+`,  // js/ts/java/python/php
	`^\s*(public|private|protected)\s+(static\s+)?class\s+\w+`, // java
	`^\s*const\s+\w+\s*=\s*(async\s*)?\(.*\)\s*=>`, // js/ts arrow function
	`^\s*impl(\s*<.*>)?\s+[\w:]+`,                // rust
	`^\s*(pub\s+)?struct\s+\w+`,                  // rust/go
	`^\s*(pub\s+)?enum\s+\w+`,                    // rust
	`^\s*(export\s+)?interface\s+\w+`,            // ts
	`^\s*func\s+(\(\s*\w+\s+\*?\w+\s*\)\s*)?\w+`, // go
	`^\s*CREATE\s+TABLE\b`,                       // sql (case sensitive upper, as spec shows)
	`^\s*function\s+\w+\s*\(\)\s*\{?\s*$`,        // shell
}, "|"))

// chunkSource implements the C1 "Source mode": a new chunk starts at any
// boundary line, or once the current chunk has grown past ChunkSizeTarget
// characters. No chunk ever exceeds 2x the target in line count.
func chunkSource(content string, opts Options) []Chunk {
	lines := strings.Split(content, "\n")
	if trailingBlank(lines) {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return []Chunk{}
	}

	var chunks []Chunk
	start := 0
	size := 0
	maxLines := estimateMaxLines(opts.ChunkSizeTarget, lines)

	flush := func(end int) {
		if end <= start {
			return
		}
		chunks = append(chunks, Chunk{
			Content:   strings.Join(lines[start:end], "\n"),
			StartLine: start + 1,
			EndLine:   end,
			ChunkType: TypeText,
		})
		start = end
		size = 0
	}

	for i, line := range lines {
		isBoundary := i > start && boundaryPattern.MatchString(line)
		overSize := size >= opts.ChunkSizeTarget
		overLines := i-start >= maxLines
		if (isBoundary || overSize) && i > start {
			flush(i)
		} else if overLines {
			flush(i)
		}
		size += len(line) + 1
	}
	flush(len(lines))

	return chunks
}

func trailingBlank(lines []string) bool {
	return len(lines) > 0 && lines[len(lines)-1] == ""
}

// estimateMaxLines converts the character-based target into a hard line-count
// ceiling of 2x target, assuming an average line is at least a handful of
// characters; this only ever forces an early flush, never blocks one.
func estimateMaxLines(target int, lines []string) int {
	avgLineLen := 40
	if len(lines) > 0 {
		total := 0
		for _, l := range lines {
			total += len(l)
		}
		if avg := total / len(lines); avg > 0 {
			avgLineLen = avg
		}
	}
	linesForTarget := target / avgLineLen
	if linesForTarget < 1 {
		linesForTarget = 1
	}
	return maxChunkMultiplier * linesForTarget
}
