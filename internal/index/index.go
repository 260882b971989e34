package index

import (
	"fmt"
	"sync"

	"cdhsearch/internal/feature"
	pkgerrors "cdhsearch/pkg/errors"
)

// Entry is one indexed image. Entries are never modified after insertion.
type Entry struct {
	ID       string          `json:"id"`
	Position int             `json:"position"`
	Vector   *feature.Vector `json:"-"`
}

// Index is an in-memory, insertion-ordered collection of fingerprints that
// all share one bin count.
type Index struct {
	mu      sync.RWMutex
	bins    int
	entries []*Entry
}

// New creates an empty index for vectors with the given bin count.
func New(bins int) (*Index, error) {
	if err := feature.ValidateBins(bins); err != nil {
		return nil, err
	}
	return &Index{bins: bins}, nil
}

// Bins returns the per-channel bin count of every entry.
func (x *Index) Bins() int {
	return x.bins
}

// Ingest extracts the fingerprint of buf and appends it under id. A failed
// extraction leaves the index unchanged.
func (x *Index) Ingest(id string, buf *feature.PixelBuffer) (*Entry, error) {
	v, err := feature.Extract(buf, x.bins)
	if err != nil {
		return nil, &pkgerrors.ItemError{ID: id, Err: err}
	}
	return x.Add(id, v)
}

// Add appends a precomputed fingerprint.
func (x *Index) Add(id string, v *feature.Vector) (*Entry, error) {
	if v == nil || v.Bins != x.bins {
		got := 0
		if v != nil {
			got = v.Bins
		}
		return nil, &pkgerrors.ItemError{
			ID:  id,
			Err: fmt.Errorf("%w: index uses %d bins, vector has %d", pkgerrors.ErrDimensionMismatch, x.bins, got),
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	e := &Entry{ID: id, Position: len(x.entries), Vector: v}
	x.entries = append(x.entries, e)
	return e, nil
}

// Reset drops every entry.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = nil
}

// Entries returns the entries in insertion order. The slice is a copy; the
// entries are shared.
func (x *Index) Entries() []*Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]*Entry, len(x.entries))
	copy(out, x.entries)
	return out
}

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}
