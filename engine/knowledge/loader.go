package knowledge

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/aeolus-energy/turbobot/pkg/fn"
)

// Loader reads plain-text manuals from a directory. Loading fails softly: a
// missing directory or an unreadable file yields fewer documents plus a log
// line, never an error the caller has to handle.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, logger: logger}
}

// LoadAll loads every .txt file under the loader's directory, sorted by file
// name. Non-text files are ignored.
func (l *Loader) LoadAll() []Document {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		l.logger.Warn("knowledge base directory not readable", "dir", l.dir, "err", err)
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		l.logger.Warn("no .txt documents found", "dir", l.dir)
		return nil
	}
	sort.Strings(names)

	// Parse files concurrently; ParMap preserves the sorted order.
	parsed := fn.ParMap(names, 4, func(name string) fn.Result[Document] {
		doc, err := l.parse(filepath.Join(l.dir, name))
		return fn.FromPair(doc, err)
	})

	var docs []Document
	for i, r := range parsed {
		doc, err := r.Unwrap()
		if err != nil {
			l.logger.Warn("skipping unparsable document", "file", names[i], "err", err)
			continue
		}
		docs = append(docs, doc)
	}
	l.logger.Info("knowledge base loaded", "dir", l.dir, "documents", len(docs))
	return docs
}

// parse reads one file and extracts title and sections.
func (l *Loader) parse(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	content := string(raw)
	lines := strings.Split(content, "\n")

	title := ""
	for _, line := range lines {
		if s := strings.TrimSpace(line); s != "" {
			title = s
			break
		}
	}

	var size int64
	if st, err := os.Stat(path); err == nil {
		size = st.Size()
	}

	sections := ParseSections(content)
	if len(sections) == 0 {
		// No headers: the whole document is one implicit section.
		sections = []Section{{Title: "", Content: content}}
	}

	return Document{
		FileName:  filepath.Base(path),
		Path:      path,
		Title:     title,
		Content:   content,
		Sections:  sections,
		Size:      size,
		LineCount: len(lines),
		CharCount: len(content),
	}, nil
}

// ParseSections splits document text on detected headers. A header is either
// an all-caps line longer than three characters, or any line followed by a
// divider made of repeated '=' or '-' characters longer than three. Text
// before the first header belongs to no section and is dropped.
func ParseSections(content string) []Section {
	var sections []Section
	currentTitle := ""
	var currentBody []string

	flush := func(excludeLast bool) {
		body := currentBody
		if excludeLast && len(body) > 0 {
			body = body[:len(body)-1]
		}
		if currentTitle != "" && len(body) > 0 {
			sections = append(sections, Section{
				Title:   currentTitle,
				Content: strings.TrimSpace(strings.Join(body, "\n")),
			})
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if isDividerLine(trimmed) {
			// The preceding line is the header for the next section.
			if len(currentBody) > 0 {
				header := strings.TrimSpace(currentBody[len(currentBody)-1])
				flush(true)
				currentTitle = header
				currentBody = nil
			}
			continue
		}

		if isAllCapsHeader(trimmed) {
			flush(false)
			currentTitle = trimmed
			currentBody = nil
			continue
		}

		currentBody = append(currentBody, line)
	}
	flush(false)

	return sections
}

// isAllCapsHeader reports whether a trimmed line is an all-caps header: longer
// than three characters, at least one letter, and no lowercase letters.
func isAllCapsHeader(s string) bool {
	if len(s) <= 3 {
		return false
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// isDividerLine reports whether a trimmed line is a header underline: longer
// than three characters and made of a single repeated '=' or '-'.
func isDividerLine(s string) bool {
	if len(s) <= 3 {
		return false
	}
	first := s[0]
	if first != '=' && first != '-' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != first {
			return false
		}
	}
	return true
}
