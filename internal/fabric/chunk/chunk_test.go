package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyInput(t *testing.T) {
	assert.Empty(t, Split("", ModeSource, Options{}))
	assert.Empty(t, Split("", ModeMarkdown, Options{}))
}

func TestChunkSourceBoundaries(t *testing.T) {
	content := strings.Join([]string{
		"package main",
		"",
		"func Foo() {",
		"    return",
		"}",
		"",
		"func Bar() {",
		"    return",
		"}",
	}, "\n")

	chunks := Split(content, ModeSource, Options{ChunkSizeTarget: 1500})
	require.NotEmpty(t, chunks)

	// Reconstructing all chunk content in order reproduces the source lines.
	var rebuilt []string
	for _, c := range chunks {
		rebuilt = append(rebuilt, strings.Split(c.Content, "\n")...)
	}
	assert.Equal(t, strings.Split(content, "\n"), rebuilt)

	for _, c := range chunks {
		assert.LessOrEqual(t, c.StartLine, c.EndLine)
	}
}

func TestChunkSourceNeverExceedsDoubleTarget(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString("x = 1\n")
	}
	chunks := Split(b.String(), ModeSource, Options{ChunkSizeTarget: 100})
	for _, c := range chunks {
		lineCount := c.EndLine - c.StartLine + 1
		maxLines := estimateMaxLines(100, strings.Split(b.String(), "\n"))
		assert.LessOrEqual(t, lineCount, maxLines+1)
	}
}

func TestChunkMarkdownHeaders(t *testing.T) {
	content := strings.Join([]string{
		"# Title",
		"intro text",
		"## Section A",
		"body a",
		"## Section B",
		"body b",
	}, "\n")

	chunks := Split(content, ModeMarkdown, Options{})
	require.Len(t, chunks, 3)
	assert.Equal(t, TypeHeader, chunks[0].ChunkType)
	assert.Equal(t, TypeHeader, chunks[1].ChunkType)
	assert.Equal(t, TypeHeader, chunks[2].ChunkType)
}

func TestChunkMarkdownPreservesFence(t *testing.T) {
	content := strings.Join([]string{
		"# Title",
		"```go",
		"## not a header",
		"func x() {}",
		"```",
		"trailing",
	}, "\n")

	chunks := Split(content, ModeMarkdown, Options{})
	joined := ""
	for _, c := range chunks {
		joined += c.Content + "\n"
	}
	assert.Contains(t, joined, "## not a header")
}

func TestModeForExtension(t *testing.T) {
	assert.Equal(t, ModeMarkdown, ModeForExtension(".md"))
	assert.Equal(t, ModeSource, ModeForExtension(".go"))
	assert.Equal(t, ModeSource, ModeForExtension(".rs"))
}
