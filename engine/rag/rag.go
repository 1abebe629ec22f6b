// Package rag wires the knowledge loader, chunker, and TF-IDF index into a
// single retrieval orchestrator. Its only contract toward the prompt builder
// is RetrieveContext: a formatted context block, or an empty string meaning
// "no relevant knowledge".
package rag

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aeolus-energy/turbobot/engine/index"
	"github.com/aeolus-energy/turbobot/engine/knowledge"
)

const (
	contextHeader      = "RELEVANT KNOWLEDGE FROM MAINTENANCE MANUALS:\n"
	contextInstruction = "\nIMPORTANT: Use the above knowledge to provide accurate, specific answers. Cite sources when using this information."

	// DefaultTopK and DefaultMinScore are the retrieval defaults used by the
	// chat pipeline.
	DefaultTopK     = 3
	DefaultMinScore = 0.05
)

var contextSeparator = "\n" + strings.Repeat("-", 60)

// Stats describes the state of the retrieval system.
type Stats struct {
	Initialized     bool     `json:"initialized"`
	KnowledgePath   string   `json:"knowledge_base_path"`
	DocumentsLoaded int      `json:"documents_loaded"`
	TotalChunks     int      `json:"total_chunks"`
	TotalCharacters int      `json:"total_characters"`
	DocumentFiles   []string `json:"document_files"`
}

// Preview is a trimmed search result for the debug search endpoint.
type Preview struct {
	SourceFile     string  `json:"source_file"`
	SourceSection  string  `json:"source_section"`
	RelevanceScore float64 `json:"relevance_score"`
	ContentPreview string  `json:"content_preview"`
}

// Manager owns the loader → chunker → retriever pipeline. All failure modes
// during initialization are non-fatal: the system keeps operating with
// retrieval disabled.
type Manager struct {
	path      string
	loader    *knowledge.Loader
	chunker   *knowledge.Chunker
	retriever *index.Retriever

	documents   []knowledge.Document
	chunks      []knowledge.Chunk
	initialized bool
	logger      *slog.Logger
}

// NewManager creates a manager over the given knowledge base directory.
func NewManager(path string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		path:      path,
		loader:    knowledge.NewLoader(path, logger),
		chunker:   knowledge.NewChunker(knowledge.DefaultChunkSize, knowledge.DefaultOverlap, logger),
		retriever: index.NewRetriever(logger),
		logger:    logger,
	}
}

// Initialize loads, chunks, and indexes the corpus. Call once at startup.
// Returns false when retrieval could not be enabled; the caller decides
// whether that is fatal.
func (m *Manager) Initialize() bool {
	m.documents = m.loader.LoadAll()
	if len(m.documents) == 0 {
		m.logger.Warn("no documents loaded, retrieval disabled")
		return false
	}

	m.chunks = m.chunker.ChunkAll(m.documents)
	if len(m.chunks) == 0 {
		m.logger.Warn("no chunks produced, retrieval disabled")
		return false
	}

	m.retriever.BuildIndex(m.chunks)
	if !m.retriever.Built() {
		m.logger.Warn("index build failed, retrieval disabled")
		return false
	}

	m.initialized = true
	m.logger.Info("retrieval initialized",
		"documents", len(m.documents),
		"chunks", len(m.chunks),
		"features", m.retriever.FeatureCount(),
	)
	return true
}

// Initialized reports whether retrieval is available.
func (m *Manager) Initialized() bool { return m.initialized }

// Reload clears the index and re-runs initialization, picking up corpus
// changes without a process restart.
func (m *Manager) Reload() bool {
	m.logger.Info("reloading knowledge base", "path", m.path)
	m.retriever.Reset()
	m.initialized = false
	m.documents = nil
	m.chunks = nil
	return m.Initialize()
}

// RetrieveContext returns the formatted context block for a query, or an
// empty string when uninitialized or when nothing clears minScore. It never
// returns an error to the caller.
func (m *Manager) RetrieveContext(query string, topK int, minScore float64) string {
	if !m.initialized {
		return ""
	}
	results := m.retriever.Search(query, topK, minScore)
	if len(results) == 0 {
		return ""
	}
	return formatContext(results)
}

// SearchKnowledge runs a debug search and returns simplified previews.
func (m *Manager) SearchKnowledge(query string, topK int) []Preview {
	if !m.initialized {
		return nil
	}
	results := m.retriever.Search(query, topK, DefaultMinScore)
	previews := make([]Preview, len(results))
	for i, r := range results {
		preview := r.Chunk.Content
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		previews[i] = Preview{
			SourceFile:     r.Chunk.SourceFile,
			SourceSection:  r.Chunk.SourceSection,
			RelevanceScore: round3(r.Score),
			ContentPreview: preview,
		}
	}
	return previews
}

// Stats returns retrieval-system statistics.
func (m *Manager) Stats() Stats {
	s := Stats{
		Initialized:   m.initialized,
		KnowledgePath: m.path,
	}
	s.DocumentsLoaded = len(m.documents)
	s.TotalChunks = len(m.chunks)
	for _, d := range m.documents {
		s.TotalCharacters += d.CharCount
		s.DocumentFiles = append(s.DocumentFiles, d.FileName)
	}
	return s
}

// formatContext renders search results into the single context string handed
// to the completion function.
func formatContext(results []index.SearchResult) string {
	var b strings.Builder
	b.WriteString(contextHeader)

	for i, r := range results {
		fmt.Fprintf(&b, "\n\n[Source %d: %s]", i+1, r.Chunk.SourceFile)
		if r.Chunk.SourceSection != "" {
			fmt.Fprintf(&b, "\n[Section: %s]", r.Chunk.SourceSection)
		}
		fmt.Fprintf(&b, "\n[Relevance: %.2f]\n\n", r.Score)
		b.WriteString(r.Chunk.Content)
		b.WriteString(contextSeparator)
	}

	b.WriteString("\n")
	b.WriteString(contextInstruction)
	return b.String()
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
