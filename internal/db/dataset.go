package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cdhsearch/internal/decode"
	"cdhsearch/internal/feature"
	"cdhsearch/internal/index"
	pkgerrors "cdhsearch/pkg/errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Source is one image to decode, identified by an opaque handle such as a
// file name.
type Source struct {
	ID   string
	Open func() (io.ReadCloser, error)
}

func (s Source) decode(d *decode.Decoder) (*feature.PixelBuffer, error) {
	rc, err := s.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrDecodeFailure, err)
	}
	defer rc.Close()
	return d.Decode(rc)
}

// FileSource reads the image at path and identifies it by its base name.
func FileSource(path string) Source {
	return Source{
		ID:   filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesSource wraps an in-memory encoded image.
func BytesSource(id string, data []byte) Source {
	return Source{
		ID:   id,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Progress is reported once per processed image, in completion order.
type Progress struct {
	Done  int
	Total int
	ID    string
	Err   error
}

type ProgressFunc func(Progress)

// LoadReport summarises a dataset load.
type LoadReport struct {
	DatasetID string
	Total     int
	Indexed   int
	Failures  []*pkgerrors.ItemError
	Duration  time.Duration
}

// LoadDataset replaces the dataset with sources. Images that fail to decode
// or extract are reported in the result and skipped; the others keep their
// relative order. The previous dataset stays in place if ctx is cancelled.
func (db *DB) LoadDataset(ctx context.Context, sources []Source, progress ProgressFunc) (*LoadReport, error) {
	if len(sources) == 0 {
		return nil, pkgerrors.ErrEmptyDataset
	}
	if !db.loadMu.TryLock() {
		return nil, pkgerrors.ErrLoadInProgress
	}
	defer db.loadMu.Unlock()

	start := time.Now()
	db.log.Infow("loading dataset", "images", len(sources), "workers", db.conf.Ingest.Workers)

	vectors, errs, err := db.extractAll(ctx, sources, progress)
	if err != nil {
		db.log.Warnw("dataset load aborted", "error", err)
		return nil, err
	}

	idx, err := index.New(db.conf.Feature.Bins)
	if err != nil {
		return nil, err
	}
	report := &LoadReport{DatasetID: uuid.NewString(), Total: len(sources)}
	for i, src := range sources {
		if errs[i] == nil {
			_, errs[i] = idx.Add(src.ID, vectors[i])
		}
		if errs[i] != nil {
			report.Failures = append(report.Failures, asItemError(src.ID, errs[i]))
			db.log.Warnw("image skipped", "id", src.ID, "error", errs[i])
		}
	}
	report.Indexed = idx.Len()
	report.Duration = time.Since(start)

	db.mu.Lock()
	db.index = idx
	db.datasetID = report.DatasetID
	db.loadedAt = time.Now()
	db.mu.Unlock()

	db.log.Infow("dataset loaded",
		"dataset", report.DatasetID,
		"indexed", report.Indexed,
		"failed", len(report.Failures),
		"duration", report.Duration)
	return report, nil
}

// extractAll fingerprints sources on a bounded worker pool. Results are
// stored by source position so order does not depend on completion order.
func (db *DB) extractAll(ctx context.Context, sources []Source, progress ProgressFunc) ([]*feature.Vector, []error, error) {
	vectors := make([]*feature.Vector, len(sources))
	errs := make([]error, len(sources))

	var (
		pmu  sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(db.conf.Ingest.Workers)
	for i, src := range sources {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vectors[i], errs[i] = db.fingerprint(src)

			pmu.Lock()
			defer pmu.Unlock()
			done++
			if progress != nil {
				progress(Progress{Done: done, Total: len(sources), ID: src.ID, Err: errs[i]})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return vectors, errs, nil
}

// AddImage appends one image to the current dataset.
func (db *DB) AddImage(ctx context.Context, src Source) (*index.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := db.fingerprint(src)
	if err != nil {
		return nil, err
	}

	db.loadMu.Lock()
	defer db.loadMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()

	e, err := db.index.Add(src.ID, v)
	if err != nil {
		return nil, err
	}
	if db.datasetID == "" {
		db.datasetID = uuid.NewString()
		db.loadedAt = time.Now()
	}
	db.log.Debugw("image added", "id", src.ID, "position", e.Position)
	return e, nil
}

func asItemError(id string, err error) *pkgerrors.ItemError {
	var item *pkgerrors.ItemError
	if errors.As(err, &item) {
		return item
	}
	return &pkgerrors.ItemError{ID: id, Err: err}
}
