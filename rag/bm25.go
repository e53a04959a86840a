// Okapi BM25 scoring over tokenized documents.
//
// Standard parameters k1=1.5, b=0.75. IDF uses the classic formulation with
// +1 inside the log so scores stay non-negative for common terms.

package rag

import "math"

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

type bm25Index struct {
	docFreqs  []map[string]int // term -> count per document
	docLens   []int
	avgDocLen float64
	idf       map[string]float64
}

func newBM25Index(docs [][]string) *bm25Index {
	idx := &bm25Index{
		docFreqs: make([]map[string]int, len(docs)),
		docLens:  make([]int, len(docs)),
		idf:      make(map[string]float64),
	}

	totalLen := 0
	docCount := make(map[string]int) // term -> number of documents containing it
	for i, doc := range docs {
		freqs := make(map[string]int, len(doc))
		for _, term := range doc {
			freqs[term]++
		}
		idx.docFreqs[i] = freqs
		idx.docLens[i] = len(doc)
		totalLen += len(doc)
		for term := range freqs {
			docCount[term]++
		}
	}

	if len(docs) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(docs))
	}

	n := float64(len(docs))
	for term, df := range docCount {
		idx.idf[term] = math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
	}

	return idx
}

// Scores returns the BM25 score of each indexed document for the query terms.
func (idx *bm25Index) Scores(query []string) []float64 {
	scores := make([]float64, len(idx.docFreqs))
	for i, freqs := range idx.docFreqs {
		norm := bm25K1 * (1 - bm25B + bm25B*float64(idx.docLens[i])/idx.avgDocLen)
		var score float64
		for _, term := range query {
			tf := float64(freqs[term])
			if tf == 0 {
				continue
			}
			score += idx.idf[term] * tf * (bm25K1 + 1) / (tf + norm)
		}
		scores[i] = score
	}
	return scores
}
