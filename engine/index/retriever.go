// Package index implements an in-memory TF-IDF vector index over knowledge
// chunks with cosine-similarity search. The index is built once at startup
// and is read-only afterwards; rebuilding without an explicit Reset is a
// logged no-op.
package index

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/aeolus-energy/turbobot/engine/knowledge"
)

const (
	// MaxFeatures caps the fitted vocabulary size.
	MaxFeatures = 2000
	// minDocFreq is the minimum number of chunks a term must appear in.
	minDocFreq = 2
	// maxDocRatio excludes terms appearing in more than this share of chunks.
	maxDocRatio = 0.7
	// scoreFloor is the absolute minimum cosine similarity for a result.
	scoreFloor = 0.01
)

var tokenPattern = regexp.MustCompile(`\w\w+`)

// SearchResult pairs a chunk with its relevance score in [0,1].
type SearchResult struct {
	Chunk knowledge.Chunk `json:"chunk"`
	Score float64         `json:"relevance_score"`
}

// Retriever is a TF-IDF retriever over a fixed chunk corpus. Vectors use
// unigram and bigram features with smoothed inverse-document-frequency
// weighting, L2-normalised so cosine similarity reduces to a dot product.
type Retriever struct {
	vocabulary map[string]int
	idf        []float64
	vectors    []map[int]float64
	chunks     []knowledge.Chunk
	built      bool
	logger     *slog.Logger
}

// NewRetriever creates an empty, unbuilt retriever.
func NewRetriever(logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{logger: logger}
}

// Built reports whether the index has been fitted.
func (r *Retriever) Built() bool { return r.built }

// FeatureCount returns the fitted vocabulary size.
func (r *Retriever) FeatureCount() int { return len(r.vocabulary) }

// BuildIndex fits the vocabulary and chunk vectors. Calling it again on an
// already-built index is a no-op; call Reset first to rebuild against a
// changed corpus.
func (r *Retriever) BuildIndex(chunks []knowledge.Chunk) {
	if r.built {
		r.logger.Info("index already built, skipping rebuild")
		return
	}

	r.chunks = chunks
	tokenized := make([][]string, len(chunks))
	for i, c := range chunks {
		tokenized[i] = ngrams(tokenize(c.Content))
	}

	r.fitVocabulary(tokenized)

	r.vectors = make([]map[int]float64, len(chunks))
	for i, terms := range tokenized {
		r.vectors[i] = r.vectorize(terms)
	}

	r.built = true
	r.logger.Info("index built", "chunks", len(chunks), "features", len(r.vocabulary))
}

// Reset clears the fitted state so the index can be rebuilt.
func (r *Retriever) Reset() {
	r.vocabulary = nil
	r.idf = nil
	r.vectors = nil
	r.chunks = nil
	r.built = false
}

// Search returns up to topK chunks scoring above both the absolute floor and
// minScore, in descending score order with ties broken by original chunk
// order. Searching an unbuilt index returns no results, never an error.
func (r *Retriever) Search(query string, topK int, minScore float64) []SearchResult {
	if !r.built || len(r.chunks) == 0 {
		r.logger.Warn("search on unbuilt index")
		return nil
	}
	if topK <= 0 {
		return nil
	}

	qvec := r.vectorize(ngrams(tokenize(query)))
	if len(qvec) == 0 {
		return nil
	}

	order := make([]int, len(r.vectors))
	scores := make([]float64, len(r.vectors))
	for i, v := range r.vectors {
		order[i] = i
		scores[i] = dot(qvec, v)
	}
	// Stable sort keeps original chunk order for equal scores.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	var results []SearchResult
	for _, idx := range order {
		if len(results) == topK {
			break
		}
		s := scores[idx]
		if s <= scoreFloor || s < minScore {
			break // scores are sorted; nothing further qualifies
		}
		results = append(results, SearchResult{Chunk: r.chunks[idx], Score: s})
	}
	return results
}

// fitVocabulary selects features by document frequency and corpus frequency.
func (r *Retriever) fitVocabulary(tokenized [][]string) {
	n := len(tokenized)
	df := make(map[string]int)
	total := make(map[string]int)

	for _, terms := range tokenized {
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			total[t]++
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				df[t]++
			}
		}
	}

	var admitted []string
	for term, f := range df {
		if f < minDocFreq {
			continue
		}
		if float64(f) > maxDocRatio*float64(n) {
			continue
		}
		admitted = append(admitted, term)
	}

	// Cap the feature budget, keeping the most frequent terms.
	sort.Slice(admitted, func(a, b int) bool {
		ta, tb := admitted[a], admitted[b]
		if total[ta] != total[tb] {
			return total[ta] > total[tb]
		}
		return ta < tb
	})
	if len(admitted) > MaxFeatures {
		admitted = admitted[:MaxFeatures]
	}
	sort.Strings(admitted)

	r.vocabulary = make(map[string]int, len(admitted))
	r.idf = make([]float64, len(admitted))
	for i, term := range admitted {
		r.vocabulary[term] = i
		r.idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1.0
	}
}

// vectorize builds an L2-normalised sparse TF-IDF vector. Terms outside the
// fitted vocabulary are ignored.
func (r *Retriever) vectorize(terms []string) map[int]float64 {
	vec := make(map[int]float64)
	for _, t := range terms {
		if idx, ok := r.vocabulary[t]; ok {
			vec[idx]++
		}
	}
	if len(vec) == 0 {
		return vec
	}
	norm := 0.0
	for idx := range vec {
		vec[idx] *= r.idf[idx]
		norm += vec[idx] * vec[idx]
	}
	norm = math.Sqrt(norm)
	for idx := range vec {
		vec[idx] /= norm
	}
	return vec
}

// tokenize lowercases text and extracts word tokens of two or more
// characters, dropping stop-words.
func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := englishStopWords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ngrams returns the tokens plus their adjacent bigrams.
func ngrams(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(tokens)-1)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// dot computes the sparse dot product, iterating the smaller vector.
func dot(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	sum := 0.0
	for idx, av := range a {
		if bv, ok := b[idx]; ok {
			sum += av * bv
		}
	}
	return sum
}
