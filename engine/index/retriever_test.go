package index

import (
	"io"
	"log/slog"
	"testing"

	"github.com/aeolus-energy/turbobot/engine/knowledge"
)

func testChunks() []knowledge.Chunk {
	contents := []string{
		"gearbox oil temperature rising fast",
		"gearbox oil needs inspection soon",
		"blade crack detected near the hub",
		"blade crack repair scheduled promptly",
	}
	chunks := make([]knowledge.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = knowledge.Chunk{ID: "chunk_000" + string(rune('0'+i)), Content: c, Index: i}
	}
	return chunks
}

func builtRetriever(t *testing.T) *Retriever {
	t.Helper()
	r := NewRetriever(slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.BuildIndex(testChunks())
	return r
}

func TestBuildIndexFitsVocabulary(t *testing.T) {
	r := builtRetriever(t)
	if !r.Built() {
		t.Fatal("expected built index")
	}
	// Terms must appear in at least 2 and at most 70% of the 4 chunks.
	if n := r.FeatureCount(); n == 0 {
		t.Fatal("expected a non-empty vocabulary")
	}
	if _, ok := r.vocabulary["gearbox"]; !ok {
		t.Error("expected gearbox in vocabulary (df=2)")
	}
	if _, ok := r.vocabulary["gearbox oil"]; !ok {
		t.Error("expected bigram in vocabulary")
	}
	if _, ok := r.vocabulary["temperature"]; ok {
		t.Error("df=1 term admitted despite min document frequency")
	}
	if _, ok := r.vocabulary["the"]; ok {
		t.Error("stop-word admitted to vocabulary")
	}
}

func TestSearchRanksMatchingChunksFirst(t *testing.T) {
	r := builtRetriever(t)
	results := r.Search("gearbox oil", 3, 0)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// Equal scores keep original chunk order.
	if results[0].Chunk.Index != 0 || results[1].Chunk.Index != 1 {
		t.Errorf("unexpected order: %d, %d", results[0].Chunk.Index, results[1].Chunk.Index)
	}
	if results[0].Score < 0.9 {
		t.Errorf("expected near-exact match, score %v", results[0].Score)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not in descending score order")
	}
}

func TestSearchHonorsTopK(t *testing.T) {
	r := builtRetriever(t)
	if results := r.Search("gearbox oil", 1, 0); len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
	if results := r.Search("gearbox oil", 0, 0); results != nil {
		t.Errorf("topK=0 should return nothing, got %d", len(results))
	}
}

func TestSearchMinScore(t *testing.T) {
	r := builtRetriever(t)
	if results := r.Search("gearbox oil", 3, 1.01); len(results) != 0 {
		t.Errorf("expected no results above impossible threshold, got %d", len(results))
	}
}

func TestSearchUnknownTermsReturnNothing(t *testing.T) {
	r := builtRetriever(t)
	if results := r.Search("quantum flux capacitor", 3, 0); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearchUnbuiltIndexReturnsNil(t *testing.T) {
	r := NewRetriever(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if results := r.Search("gearbox", 3, 0); results != nil {
		t.Errorf("expected nil, got %v", results)
	}
}

func TestBuildIndexIsIdempotent(t *testing.T) {
	r := builtRetriever(t)
	before := r.FeatureCount()

	// A second build against a different corpus must not change anything.
	r.BuildIndex([]knowledge.Chunk{{ID: "chunk_0099", Content: "unrelated text entirely"}})
	if r.FeatureCount() != before {
		t.Error("rebuild without Reset changed the vocabulary")
	}
	if len(r.Search("gearbox oil", 3, 0)) != 2 {
		t.Error("rebuild without Reset changed search results")
	}
}

func TestResetAllowsRebuild(t *testing.T) {
	r := builtRetriever(t)
	r.Reset()
	if r.Built() {
		t.Fatal("expected unbuilt after Reset")
	}
	r.BuildIndex(testChunks())
	if !r.Built() || r.FeatureCount() == 0 {
		t.Fatal("expected rebuilt index after Reset")
	}
}

func TestNgrams(t *testing.T) {
	got := ngrams([]string{"high", "vibration", "alarm"})
	want := []string{"high", "vibration", "alarm", "high vibration", "vibration alarm"}
	if len(got) != len(want) {
		t.Fatalf("ngrams = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ngrams[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
