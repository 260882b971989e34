package retrieval

import (
	"sort"

	"cdhsearch/internal/feature"
	"cdhsearch/internal/index"
	"cdhsearch/internal/similarity"
)

// DefaultTopK is the number of results returned when a query asks for none.
const DefaultTopK = 6

// Result is one ranked match.
type Result struct {
	Entry *index.Entry
	Score float64
}

// Engine ranks index entries against a query fingerprint by linear scan.
type Engine struct {
	scorer *similarity.Scorer
}

// NewEngine returns an engine scoring with s, or the default scorer if s is nil.
func NewEngine(s *similarity.Scorer) *Engine {
	if s == nil {
		s = similarity.Default()
	}
	return &Engine{scorer: s}
}

// Query scores q against every entry of idx and returns the best
// min(topK, idx.Len()) matches by descending score. Equal scores keep
// insertion order. topK <= 0 selects DefaultTopK.
func (e *Engine) Query(q *feature.Vector, idx *index.Index, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	entries := idx.Entries()
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		score, err := e.scorer.Score(q, entry.Vector)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Entry: entry, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}
