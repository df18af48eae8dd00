// Package chunking splits markdown documents into embedding-sized pieces,
// using headers as primary boundaries.
package chunking

import (
	"regexp"
	"strings"
)

const (
	// DefaultMaxChunkSize is the maximum chunk size in characters
	DefaultMaxChunkSize = 1500
	// MinChunkSize drops fragments too small to be useful search hits
	MinChunkSize = 80
)

// Chunk is one piece of a document
type Chunk struct {
	Index        int
	Text         string
	SectionTitle string
}

// Options configures the chunking behavior
type Options struct {
	MaxChunkSize int
}

// DefaultOptions returns default chunking options
func DefaultOptions() Options {
	return Options{MaxChunkSize: DefaultMaxChunkSize}
}

var headerRegex = regexp.MustCompile(`^#{1,6}\s+(.+)$`)

// ChunkMarkdown splits content into chunks at markdown headers, further
// splitting oversized sections at paragraph boundaries.
func ChunkMarkdown(content string, opts Options) []Chunk {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}

	var chunks []Chunk
	var section strings.Builder
	title := ""

	flush := func() {
		text := strings.TrimSpace(section.String())
		section.Reset()
		if len(text) < MinChunkSize {
			return
		}
		for _, piece := range splitBySize(text, opts.MaxChunkSize) {
			chunks = append(chunks, Chunk{
				Index:        len(chunks),
				Text:         piece,
				SectionTitle: title,
			})
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if m := headerRegex.FindStringSubmatch(line); m != nil {
			flush()
			title = strings.TrimSpace(m[1])
		}
		section.WriteString(line)
		section.WriteString("\n")
	}
	flush()

	return chunks
}

// splitBySize packs paragraphs into pieces of at most maxSize characters.
// A single paragraph longer than maxSize becomes its own piece.
func splitBySize(text string, maxSize int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}

	var pieces []string
	var current strings.Builder

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para)+2 > maxSize {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(para)
		current.WriteString("\n\n")
	}
	if piece := strings.TrimSpace(current.String()); piece != "" {
		pieces = append(pieces, piece)
	}

	return pieces
}
