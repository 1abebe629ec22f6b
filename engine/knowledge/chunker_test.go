package knowledge

import (
	"strings"
	"testing"
)

func TestChunkTextSingleChunk(t *testing.T) {
	c := NewChunker(0, 0, discardLogger())
	chunks := c.ChunkText("Short maintenance note.", "manual.txt", "NOTES", 0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	ch := chunks[0]
	if ch.ID != "chunk_0000" {
		t.Errorf("ID = %q", ch.ID)
	}
	if ch.Content != "Short maintenance note." {
		t.Errorf("Content = %q", ch.Content)
	}
	if ch.SourceFile != "manual.txt" || ch.SourceSection != "NOTES" {
		t.Errorf("source = %q / %q", ch.SourceFile, ch.SourceSection)
	}
	if ch.CharCount != len(ch.Content) {
		t.Errorf("CharCount = %d", ch.CharCount)
	}
	if ch.TokenCount != len(ch.Content)/4 {
		t.Errorf("TokenCount = %d", ch.TokenCount)
	}
}

func TestChunkTextEmpty(t *testing.T) {
	c := NewChunker(100, 10, discardLogger())
	if chunks := c.ChunkText("   \n\n  ", "manual.txt", "", 0); chunks != nil {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunkTextSplitsOnParagraphs(t *testing.T) {
	para := strings.Repeat("word ", 20) // ~100 chars
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 5))

	c := NewChunker(250, 0, discardLogger())
	chunks := c.ChunkText(text, "manual.txt", "", 0)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Content == "" {
			t.Errorf("chunk %d is empty", i)
		}
		// 250 target plus one paragraph of slack at most.
		if len(ch.Content) > 250+len(para) {
			t.Errorf("chunk %d overlong: %d chars", i, len(ch.Content))
		}
	}
}

func TestChunkTextOversizedParagraphEmittedWhole(t *testing.T) {
	big := strings.TrimSpace(strings.Repeat("alpha beta gamma ", 30)) // ~500 chars, no blank lines
	c := NewChunker(100, 10, discardLogger())
	chunks := c.ChunkText(big, "manual.txt", "", 0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for a single oversized paragraph, got %d", len(chunks))
	}
	if chunks[0].Content != big {
		t.Error("oversized paragraph should be kept intact")
	}
}

func TestChunkTextOverlapSeedsNextChunk(t *testing.T) {
	first := "This paragraph fills the first chunk. The tail sentence carries over."
	second := "A second paragraph that forces a split."
	c := NewChunker(len(first), 40, discardLogger())
	chunks := c.ChunkText(first+"\n\n"+second, "manual.txt", "", 0)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[1].Content, "The tail sentence carries over.") {
		t.Errorf("expected overlap seed, got %q", chunks[1].Content)
	}
	if !strings.HasSuffix(chunks[1].Content, second) {
		t.Errorf("expected second paragraph after the seed, got %q", chunks[1].Content)
	}
}

func TestChunkAllAssignsGlobalIDs(t *testing.T) {
	docs := []Document{
		{
			FileName: "a.txt",
			Sections: []Section{
				{Title: "ONE", Content: "first section text"},
				{Title: "TWO", Content: "second section text"},
			},
		},
		{
			FileName: "b.txt",
			Sections: []Section{{Title: "THREE", Content: "third section text"}},
		},
	}
	c := NewChunker(0, 0, discardLogger())
	chunks := c.ChunkAll(docs)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	want := []string{"chunk_0000", "chunk_0001", "chunk_0002"}
	for i, id := range want {
		if chunks[i].ID != id {
			t.Errorf("chunks[%d].ID = %q, want %q", i, chunks[i].ID, id)
		}
	}
	if chunks[2].SourceFile != "b.txt" || chunks[2].SourceSection != "THREE" {
		t.Errorf("chunk 2 source = %q / %q", chunks[2].SourceFile, chunks[2].SourceSection)
	}
}

func TestOverlapTailTrimsToSentenceBoundary(t *testing.T) {
	c := NewChunker(100, 20, discardLogger())
	tail := c.overlapTail("Some long text here. Final words")
	if tail != "Final words" {
		t.Errorf("overlapTail = %q, want %q", tail, "Final words")
	}
}
