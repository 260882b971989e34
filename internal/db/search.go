package db

import (
	"context"

	"cdhsearch/internal/feature"
	"cdhsearch/internal/retrieval"
)

// Search decodes src and ranks the dataset against it. topK <= 0 uses the
// configured default.
func (db *DB) Search(ctx context.Context, src Source, topK int) ([]retrieval.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := db.fingerprint(src)
	if err != nil {
		return nil, err
	}
	return db.SearchVector(q, topK)
}

// SearchVector ranks the dataset against a precomputed fingerprint.
func (db *DB) SearchVector(q *feature.Vector, topK int) ([]retrieval.Result, error) {
	if topK <= 0 {
		topK = db.conf.Scoring.TopK
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	results, err := db.engine.Query(q, db.index, topK)
	if err != nil {
		return nil, err
	}
	db.log.Debugw("search", "entries", db.index.Len(), "returned", len(results))
	return results, nil
}
