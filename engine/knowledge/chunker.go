package knowledge

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize is the soft target chunk length in characters.
	DefaultChunkSize = 2500
	// DefaultOverlap is how many trailing characters of a chunk seed the next.
	DefaultOverlap = 50
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// Chunker splits section text into bounded chunks. Chunks accumulate whole
// paragraphs up to the size target; a single paragraph longer than the target
// is still emitted whole, so the target is soft, not a hard cap.
type Chunker struct {
	size    int
	overlap int
	logger  *slog.Logger
}

// NewChunker creates a chunker with the given size target and overlap length.
// Non-positive values fall back to the defaults.
func NewChunker(size, overlap int, logger *slog.Logger) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{size: size, overlap: overlap, logger: logger}
}

// ChunkAll chunks every document, assigning IDs that are unique and strictly
// increasing across the whole corpus.
func (c *Chunker) ChunkAll(docs []Document) []Chunk {
	var all []Chunk
	for _, doc := range docs {
		docChunks := c.ChunkDocument(doc, len(all))
		all = append(all, docChunks...)
		c.logger.Debug("document chunked", "file", doc.FileName, "chunks", len(docChunks))
	}
	c.logger.Info("corpus chunked", "size", c.size, "overlap", c.overlap, "chunks", len(all))
	return all
}

// ChunkDocument chunks one document section by section, numbering chunks from
// startID.
func (c *Chunker) ChunkDocument(doc Document, startID int) []Chunk {
	var chunks []Chunk
	for _, sec := range doc.Sections {
		chunks = append(chunks, c.ChunkText(sec.Content, doc.FileName, sec.Title, startID+len(chunks))...)
	}
	return chunks
}

// ChunkText splits text into chunks along paragraph boundaries. Empty or
// whitespace-only input produces no chunks.
func (c *Chunker) ChunkText(text, sourceFile, sourceSection string, startID int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []Chunk
	current := ""
	index := 0

	emit := func() {
		content := strings.TrimSpace(current)
		chunks = append(chunks, Chunk{
			ID:            fmt.Sprintf("chunk_%04d", startID+index),
			Content:       content,
			SourceFile:    sourceFile,
			SourceSection: sourceSection,
			Index:         index,
			CharCount:     len(content),
			TokenCount:    estimateTokens(content),
		})
		index++
	}

	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if current != "" && len(current)+len(para) > c.size {
			emit()
			// Seed the next chunk with the tail of this one so local
			// context survives the boundary.
			if tail := c.overlapTail(current); tail != "" {
				current = tail + "\n\n" + para
			} else {
				current = para
			}
			continue
		}

		if current == "" {
			current = para
		} else {
			current += "\n\n" + para
		}
	}

	if strings.TrimSpace(current) != "" {
		emit()
	}
	return chunks
}

// overlapTail returns the trailing overlap characters of text, trimmed forward
// to the nearest sentence or line boundary when one exists within the tail.
func (c *Chunker) overlapTail(text string) string {
	if c.overlap == 0 {
		return ""
	}
	if len(text) <= c.overlap {
		return text
	}
	tail := text[len(text)-c.overlap:]

	boundary := max(strings.Index(tail, ". "),
		max(strings.Index(tail, ".\n"), strings.Index(tail, "\n")))
	if boundary > 0 {
		tail = strings.TrimSpace(tail[boundary+1:])
	}
	return tail
}

// estimateTokens approximates token count as one token per four characters.
func estimateTokens(s string) int {
	return len(s) / 4
}
