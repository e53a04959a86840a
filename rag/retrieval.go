// Package rag provides keyword-based document retrieval over a small
// markdown corpus.
//
// Documents are chunked by paragraph/heading and indexed with BM25.
// Retrieval is deterministic: the same corpus and query always rank the
// same fragments in the same order.
//
// Information Hiding:
// - Chunking rules hidden behind the constructor
// - BM25 index internals hidden behind Retrieve

package rag

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Fragment is a retrievable unit of document text with a stable identifier.
// Produced only by the Retriever; read-only afterward.
type Fragment struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// minChunkLen filters out headings-only and stray fragments.
const minChunkLen = 20

var wordPattern = regexp.MustCompile(`\w+`)

// Retriever ranks document fragments for a query using BM25.
// Safe for concurrent use after construction: the index is read-only.
type Retriever struct {
	chunks []Fragment
	index  *bm25Index
}

// NewRetriever loads and chunks every markdown file under docsDir and
// builds the index. Returns an error if the directory cannot be read.
func NewRetriever(docsDir string) (*Retriever, error) {
	entries, err := os.ReadDir(docsDir)
	if err != nil {
		return nil, fmt.Errorf("documents directory not found: %w", err)
	}

	var chunks []Fragment
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(docsDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read document %s: %w", path, err)
		}
		source := strings.TrimSuffix(entry.Name(), ".md")
		chunks = append(chunks, chunkDocument(source, string(data))...)
	}

	return NewRetrieverFromChunks(chunks), nil
}

// NewRetrieverFromChunks builds a retriever over pre-chunked fragments.
// Useful for tests and embedded corpora.
func NewRetrieverFromChunks(chunks []Fragment) *Retriever {
	r := &Retriever{chunks: chunks}
	if len(chunks) > 0 {
		docs := make([][]string, len(chunks))
		for i, c := range chunks {
			docs[i] = tokenize(c.Content)
		}
		r.index = newBM25Index(docs)
	}
	return r
}

// chunkDocument splits one document into fragments by paragraphs/headings.
// Fragment IDs are stable: "<source>::chunkN" in document order.
func chunkDocument(source, content string) []Fragment {
	var chunks []Fragment
	chunkID := 0
	for _, section := range splitSections(content) {
		section = strings.TrimSpace(section)
		if len(section) <= minChunkLen {
			continue
		}
		chunks = append(chunks, Fragment{
			ID:      fmt.Sprintf("%s::chunk%d", source, chunkID),
			Content: section,
			Source:  source,
		})
		chunkID++
	}
	return chunks
}

// splitSections breaks a document at blank lines and before heading lines,
// so each heading starts its own section.
func splitSections(content string) []string {
	var sections []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			flush()
		}
		current = append(current, line)
	}
	flush()
	return sections
}

// tokenize lowercases and splits on non-alphanumeric runs.
func tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// Retrieve returns the topK most relevant fragments for the query, highest
// score first. Returns an empty slice if no index is built; never errors.
func (r *Retriever) Retrieve(query string, topK int) []Fragment {
	if r.index == nil || len(r.chunks) == 0 || topK <= 0 {
		return []Fragment{}
	}

	scores := r.index.Scores(tokenize(query))

	indices := make([]int, len(scores))
	for i := range indices {
		indices[i] = i
	}
	// Stable sort keeps document order for tied scores, so ranking is
	// deterministic across runs.
	sort.SliceStable(indices, func(a, b int) bool {
		return scores[indices[a]] > scores[indices[b]]
	})

	if topK > len(indices) {
		topK = len(indices)
	}

	results := make([]Fragment, 0, topK)
	for _, idx := range indices[:topK] {
		f := r.chunks[idx]
		f.Score = scores[idx]
		results = append(results, f)
	}
	return results
}

// FragmentByID returns the fragment with the given ID, or false if absent.
func (r *Retriever) FragmentByID(id string) (Fragment, bool) {
	for _, c := range r.chunks {
		if c.ID == id {
			return c, true
		}
	}
	return Fragment{}, false
}

// Len returns the number of indexed fragments.
func (r *Retriever) Len() int {
	return len(r.chunks)
}
