// Package knowledge loads the maintenance-manual corpus and splits it into
// retrievable chunks. It is the first half of the retrieval pipeline; the
// index package consumes its output.
package knowledge

// Document is a single manual file loaded from the knowledge base directory.
// Immutable once loaded; discarded and rebuilt on reload.
type Document struct {
	FileName  string    `json:"file_name"`
	Path      string    `json:"file_path"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Sections  []Section `json:"sections"`
	Size      int64     `json:"size"`
	LineCount int       `json:"line_count"`
	CharCount int       `json:"char_count"`
}

// Section is a titled, non-overlapping span of a document. A document with no
// detected headers carries exactly one implicit section holding its full text.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Chunk is a bounded slice of a section, ready for indexing. IDs are unique
// and strictly increasing within one build.
type Chunk struct {
	ID            string `json:"chunk_id"`
	Content       string `json:"content"`
	SourceFile    string `json:"source_file"`
	SourceSection string `json:"source_section"`
	Index         int    `json:"chunk_index"`
	CharCount     int    `json:"char_count"`
	TokenCount    int    `json:"token_count"`
}
