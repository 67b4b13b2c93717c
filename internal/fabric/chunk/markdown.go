package chunk

import (
	"regexp"
	"strings"
)

var (
	atxHeaderPattern = regexp.MustCompile(`^#{1,6}\s+`)
	fencePattern     = regexp.MustCompile("^(```|~~~)")
	hrPattern        = regexp.MustCompile(`^\s*(-{3,}|\*{3,}|_{3,})\s*$`)
	tablePattern     = regexp.MustCompile(`^\s*\|.*\|\s*$`)
	taskListPattern  = regexp.MustCompile(`^\s*[-*+]\s+\[[ xX]\]\s+`)
	listPattern      = regexp.MustCompile(`^\s*([-*+]|\d+\.)\s+`)
	blockquotePattern = regexp.MustCompile(`^\s*>`)
)

// chunkMarkdown implements the C1 "Markdown mode": boundaries are ATX
// headers, fenced code opens, and horizontal rules; an open fence is never
// split across chunks unless AllowBreakInCodeBlocks is set.
func chunkMarkdown(content string, opts Options) []Chunk {
	lines := strings.Split(content, "\n")
	if trailingBlank(lines) {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return []Chunk{}
	}

	var chunks []Chunk
	start := 0
	inFence := false

	flush := func(end int) {
		if end <= start {
			return
		}
		body := lines[start:end]
		chunks = append(chunks, Chunk{
			Content:   strings.Join(body, "\n"),
			StartLine: start + 1,
			EndLine:   end,
			ChunkType: classify(body),
		})
		start = end
	}

	for i, line := range lines {
		if fencePattern.MatchString(line) {
			if !inFence && i > start {
				flush(i)
			}
			inFence = !inFence
			continue
		}
		if inFence && !opts.AllowBreakInCodeBlocks {
			continue
		}
		isBoundary := i > start && (atxHeaderPattern.MatchString(line) || fencePattern.MatchString(line) || hrPattern.MatchString(line))
		if isBoundary {
			flush(i)
		}
	}
	flush(len(lines))

	return chunks
}

// classify inspects the first non-blank line of a chunk body to assign its
// ChunkType.
func classify(body []string) Type {
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			continue
		}
		switch {
		case atxHeaderPattern.MatchString(line):
			return TypeHeader
		case fencePattern.MatchString(line):
			return TypeCodeBlock
		case hrPattern.MatchString(line):
			return TypeHorizontalRule
		case tablePattern.MatchString(line):
			return TypeTable
		case taskListPattern.MatchString(line):
			return TypeTaskList
		case listPattern.MatchString(line):
			return TypeList
		case blockquotePattern.MatchString(line):
			return TypeBlockquote
		default:
			return TypeText
		}
	}
	return TypeText
}
