package feature

import (
	"fmt"

	pkgerrors "cdhsearch/pkg/errors"
)

const (
	// DefaultBins is the number of buckets per channel, 16³ = 4096 bins per histogram.
	DefaultBins = 16
	// MaxBins bounds each histogram to 64³ entries.
	MaxBins = 64
)

// Vector is the fingerprint of one image. It must not be modified after
// extraction.
type Vector struct {
	Bins          int        `json:"bins"`
	ColorHist     []float64  `json:"color_hist"`
	ColorDiffHist []float64  `json:"color_diff_hist"`
	MeanColor     [3]float64 `json:"mean_color"`
}

// Len returns the number of entries in each histogram.
func (v *Vector) Len() int {
	return v.Bins * v.Bins * v.Bins
}

// ValidateBins reports whether bins is a usable per-channel bucket count.
func ValidateBins(bins int) error {
	if bins < 1 || bins > MaxBins {
		return fmt.Errorf("%w: %d not in [1, %d]", pkgerrors.ErrInvalidBins, bins, MaxBins)
	}
	return nil
}

// quantize maps a 0-255 magnitude to its bucket.
func quantize(v, bins int) int {
	q := v * bins / 256
	if q >= bins {
		return bins - 1
	}
	if q < 0 {
		return 0
	}
	return q
}

// quantizeMean buckets the mean of two 0-255 magnitudes without rounding it
// first: floor((a+b)/2 * bins/256) == floor((a+b)*bins/512).
func quantizeMean(a, b, bins int) int {
	q := (a + b) * bins / 512
	if q >= bins {
		return bins - 1
	}
	return q
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// Extract computes the color histogram, color difference histogram and mean
// color of buf using bins buckets per channel.
func Extract(buf *PixelBuffer, bins int) (*Vector, error) {
	if err := ValidateBins(bins); err != nil {
		return nil, err
	}
	if err := buf.validate(); err != nil {
		return nil, err
	}
	if buf.Width < 2 || buf.Height < 2 {
		return nil, fmt.Errorf("%w: %dx%d", pkgerrors.ErrDegenerateInput, buf.Width, buf.Height)
	}

	size := bins * bins * bins
	colorCounts := make([]uint32, size)
	diffCounts := make([]uint32, size)
	var sumR, sumG, sumB uint64

	w, h := buf.Width, buf.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := buf.At(x, y)
			sumR += uint64(r)
			sumG += uint64(g)
			sumB += uint64(b)

			ci := quantize(int(r), bins)*bins*bins + quantize(int(g), bins)*bins + quantize(int(b), bins)
			colorCounts[ci]++

			if x == w-1 || y == h-1 {
				continue
			}
			rr, rg, rb := buf.At(x+1, y)
			br, bg, bb := buf.At(x, y+1)
			dr := quantizeMean(absDiff(r, rr), absDiff(r, br), bins)
			dg := quantizeMean(absDiff(g, rg), absDiff(g, bg), bins)
			db := quantizeMean(absDiff(b, rb), absDiff(b, bb), bins)
			diffCounts[dr*bins*bins+dg*bins+db]++
		}
	}

	pixels := w * h
	colorHist, err := normalize(colorCounts, pixels)
	if err != nil {
		return nil, err
	}
	diffHist, err := normalize(diffCounts, (w-1)*(h-1))
	if err != nil {
		return nil, err
	}

	n := float64(pixels)
	return &Vector{
		Bins:          bins,
		ColorHist:     colorHist,
		ColorDiffHist: diffHist,
		MeanColor:     [3]float64{float64(sumR) / n, float64(sumG) / n, float64(sumB) / n},
	}, nil
}

func normalize(counts []uint32, total int) ([]float64, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: histogram has no samples", pkgerrors.ErrDegenerateInput)
	}
	out := make([]float64, len(counts))
	t := float64(total)
	for i, c := range counts {
		out[i] = float64(c) / t
	}
	return out, nil
}
