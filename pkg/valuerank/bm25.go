package valuerank

import (
	"math"
	"strings"
)

// BM25 parameters. Standard values; the corpus here is short cell values,
// so tuning buys little.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// tokenize lowercases and whitespace-splits a value into terms.
func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// bm25Scores computes a BM25 relevance score for every document against the
// query terms. Documents are pre-tokenized term slices; the inverse document
// frequencies come from the document set itself.
func bm25Scores(queryTerms []string, docs [][]string) []float64 {
	n := len(docs)
	scores := make([]float64, n)
	if n == 0 || len(queryTerms) == 0 {
		return scores
	}

	// Document frequency per query term, and average document length.
	df := make(map[string]int, len(queryTerms))
	totalLen := 0
	for _, doc := range docs {
		totalLen += len(doc)
		seen := make(map[string]bool, len(doc))
		for _, term := range doc {
			seen[term] = true
		}
		for _, term := range queryTerms {
			if seen[term] {
				df[term]++
			}
		}
	}
	avgLen := float64(totalLen) / float64(n)
	if avgLen == 0 {
		return scores
	}

	idf := make(map[string]float64, len(queryTerms))
	for _, term := range queryTerms {
		d := float64(df[term])
		idf[term] = math.Log((float64(n)-d+0.5)/(d+0.5) + 1)
	}

	for i, doc := range docs {
		tf := make(map[string]int, len(doc))
		for _, term := range doc {
			tf[term]++
		}
		docLen := float64(len(doc))
		for _, term := range queryTerms {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			norm := f * (bm25K1 + 1) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
			scores[i] += idf[term] * norm
		}
	}

	return scores
}
