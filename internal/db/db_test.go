package db

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cdhsearch/internal/config"
	pkgerrors "cdhsearch/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, workers int) *DB {
	t.Helper()
	conf := config.Default()
	conf.Feature.ImageSize = 32
	conf.Ingest.Workers = workers
	db, err := New(conf)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// pngImage draws a vertical two-tone split so images differ in both
// histograms.
func pngImage(t *testing.T, left, right color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if x < 8 {
				img.Set(x, y, left)
			} else {
				img.Set(x, y, right)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func palette(i int) (color.RGBA, color.RGBA) {
	return color.RGBA{uint8(i * 40), 30, 200 - uint8(i*30), 255}, color.RGBA{20, uint8(i * 50), 90, 255}
}

func sources(t *testing.T, n int) []Source {
	t.Helper()
	out := make([]Source, n)
	for i := range out {
		l, r := palette(i)
		out[i] = BytesSource(fmt.Sprintf("img-%d.png", i), pngImage(t, l, r))
	}
	return out
}

func TestLoadDataset_IndexesInSourceOrder(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			db := newTestDB(t, workers)
			srcs := sources(t, 5)

			report, err := db.LoadDataset(context.Background(), srcs, nil)
			require.NoError(t, err)
			assert.Equal(t, 5, report.Total)
			assert.Equal(t, 5, report.Indexed)
			assert.Empty(t, report.Failures)
			assert.NotEmpty(t, report.DatasetID)

			entries := db.Entries()
			require.Len(t, entries, 5)
			for i, e := range entries {
				assert.Equal(t, srcs[i].ID, e.ID)
				assert.Equal(t, i, e.Position)
			}

			stats := db.Stats()
			assert.Equal(t, report.DatasetID, stats.DatasetID)
			assert.Equal(t, 5, stats.Entries)
			assert.Equal(t, 16, stats.Bins)
			assert.Equal(t, uint(32), stats.ImageSize)
			assert.False(t, stats.LoadedAt.IsZero())
		})
	}
}

func TestLoadDataset_FailuresDoNotAbort(t *testing.T) {
	db := newTestDB(t, 2)
	srcs := sources(t, 3)
	srcs = append(srcs[:1], append([]Source{BytesSource("broken.png", []byte("not a png"))}, srcs[1:]...)...)
	srcs = append(srcs, FileSource(filepath.Join(t.TempDir(), "missing.png")))

	report, err := db.LoadDataset(context.Background(), srcs, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 3, report.Indexed)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, "broken.png", report.Failures[0].ID)
	assert.Equal(t, "missing.png", report.Failures[1].ID)
	for _, f := range report.Failures {
		assert.ErrorIs(t, f, pkgerrors.ErrDecodeFailure)
	}

	ids := []string{}
	for _, e := range db.Entries() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"img-0.png", "img-1.png", "img-2.png"}, ids)
}

func TestLoadDataset_ReportsProgress(t *testing.T) {
	db := newTestDB(t, 3)
	srcs := sources(t, 4)
	srcs = append(srcs, BytesSource("bad", nil))

	var (
		mu   sync.Mutex
		seen []Progress
	)
	_, err := db.LoadDataset(context.Background(), srcs, func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p)
	})
	require.NoError(t, err)

	require.Len(t, seen, 5)
	failed := 0
	for i, p := range seen {
		assert.Equal(t, i+1, p.Done)
		assert.Equal(t, 5, p.Total)
		if p.Err != nil {
			failed++
			assert.Equal(t, "bad", p.ID)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestLoadDataset_ReplacesPreviousDataset(t *testing.T) {
	db := newTestDB(t, 1)
	first, err := db.LoadDataset(context.Background(), sources(t, 5), nil)
	require.NoError(t, err)

	l, r := palette(9)
	second, err := db.LoadDataset(context.Background(), []Source{BytesSource("only.png", pngImage(t, l, r))}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.DatasetID, second.DatasetID)
	require.Len(t, db.Entries(), 1)
	assert.Equal(t, "only.png", db.Entries()[0].ID)
}

func TestLoadDataset_CancelKeepsPreviousDataset(t *testing.T) {
	db := newTestDB(t, 1)
	_, err := db.LoadDataset(context.Background(), sources(t, 2), nil)
	require.NoError(t, err)
	before := db.Stats().DatasetID

	ctx, cancel := context.WithCancel(context.Background())
	_, err = db.LoadDataset(ctx, sources(t, 5), func(p Progress) {
		if p.Done == 1 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, db.Entries(), 2)
	assert.Equal(t, before, db.Stats().DatasetID)
}

func TestLoadDataset_Empty(t *testing.T) {
	db := newTestDB(t, 1)
	_, err := db.LoadDataset(context.Background(), nil, nil)
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyDataset)
}

func TestLoadDataset_RejectsConcurrentLoad(t *testing.T) {
	db := newTestDB(t, 1)
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := db.LoadDataset(context.Background(), sources(t, 2), func(p Progress) {
			if p.Done == 1 {
				close(started)
				<-release
			}
		})
		assert.NoError(t, err)
	}()

	<-started
	_, err := db.LoadDataset(context.Background(), sources(t, 1), nil)
	assert.ErrorIs(t, err, pkgerrors.ErrLoadInProgress)
	close(release)
	wg.Wait()
	assert.Len(t, db.Entries(), 2)
}

func TestSearch_RanksIdenticalImageFirst(t *testing.T) {
	db := newTestDB(t, 2)
	srcs := sources(t, 5)
	_, err := db.LoadDataset(context.Background(), srcs, nil)
	require.NoError(t, err)

	l, r := palette(3)
	results, err := db.Search(context.Background(), BytesSource("query.png", pngImage(t, l, r)), 0)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "img-3.png", results[0].Entry.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	results, err = db.Search(context.Background(), BytesSource("query.png", pngImage(t, l, r)), 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// the query image matched a dataset image's pixels, so extraction was reused
	hits, _ := db.vectors.Stats()
	assert.GreaterOrEqual(t, hits, uint64(2))
}

func TestSearch_DecodeFailure(t *testing.T) {
	db := newTestDB(t, 1)
	_, err := db.Search(context.Background(), BytesSource("q", []byte{0x1, 0x2}), 6)
	assert.ErrorIs(t, err, pkgerrors.ErrDecodeFailure)

	var item *pkgerrors.ItemError
	require.ErrorAs(t, err, &item)
	assert.Equal(t, "q", item.ID)
}

func TestSearch_EmptyDataset(t *testing.T) {
	db := newTestDB(t, 1)
	l, r := palette(1)
	results, err := db.Search(context.Background(), BytesSource("q", pngImage(t, l, r)), 6)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAddImageAndReset(t *testing.T) {
	db := newTestDB(t, 1)
	_, err := db.LoadDataset(context.Background(), sources(t, 2), nil)
	require.NoError(t, err)

	l, r := palette(7)
	e, err := db.AddImage(context.Background(), BytesSource("extra.png", pngImage(t, l, r)))
	require.NoError(t, err)
	assert.Equal(t, 2, e.Position)
	assert.Len(t, db.Entries(), 3)

	_, err = db.AddImage(context.Background(), BytesSource("bad.png", []byte("x")))
	assert.ErrorIs(t, err, pkgerrors.ErrDecodeFailure)
	assert.Len(t, db.Entries(), 3)

	db.Reset()
	assert.Empty(t, db.Entries())
	assert.Empty(t, db.Stats().DatasetID)

	e, err = db.AddImage(context.Background(), BytesSource("first.png", pngImage(t, l, r)))
	require.NoError(t, err)
	assert.Equal(t, 0, e.Position)
	assert.NotEmpty(t, db.Stats().DatasetID)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	l, r := palette(2)
	require.NoError(t, os.WriteFile(path, pngImage(t, l, r), 0644))

	db := newTestDB(t, 1)
	report, err := db.LoadDataset(context.Background(), []Source{FileSource(path)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, "a.png", db.Entries()[0].ID)
}

func TestNew_InvalidConfig(t *testing.T) {
	conf := config.Default()
	conf.Feature.Bins = 0
	_, err := New(conf)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidBins)

	conf = config.Default()
	conf.Feature.Interpolation = "unknown"
	_, err = New(conf)
	assert.Error(t, err)
}
