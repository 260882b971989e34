package similarity

import (
	"fmt"
	"math"

	"cdhsearch/internal/feature"
	pkgerrors "cdhsearch/pkg/errors"
)

// MaxColorDistance is the RGB distance between black and white, sqrt(3*255²).
var MaxColorDistance = math.Sqrt(3 * 255 * 255)

// Weights combines the three partial similarities. They must be
// non-negative and sum to 1.
type Weights struct {
	Diff  float64 `yaml:"diff_weight" json:"diff_weight"`
	Color float64 `yaml:"color_weight" json:"color_weight"`
	Mean  float64 `yaml:"mean_weight" json:"mean_weight"`
}

// DefaultWeights favours gradient structure and color distribution equally,
// with mean color as a coarse tie-breaker.
var DefaultWeights = Weights{Diff: 0.4, Color: 0.4, Mean: 0.2}

const weightTolerance = 1e-9

// Validate checks the weights form a convex combination.
func (w Weights) Validate() error {
	if w.Diff < 0 || w.Color < 0 || w.Mean < 0 {
		return fmt.Errorf("%w: negative weight in %+v", pkgerrors.ErrInvalidWeights, w)
	}
	if s := w.Diff + w.Color + w.Mean; math.Abs(s-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %g", pkgerrors.ErrInvalidWeights, s)
	}
	return nil
}

// Scorer compares feature vectors.
type Scorer struct {
	weights Weights
}

// NewScorer returns a scorer using w.
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

// Default returns a scorer with DefaultWeights.
func Default() *Scorer {
	return &Scorer{weights: DefaultWeights}
}

// Weights returns the scorer's weights.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score returns the similarity of a and b in [0, 1]. It is symmetric and
// equals 1 when a and b are the same fingerprint.
func (s *Scorer) Score(a, b *feature.Vector) (float64, error) {
	if err := compatible(a, b); err != nil {
		return 0, err
	}
	diff := Intersection(a.ColorDiffHist, b.ColorDiffHist)
	color := Intersection(a.ColorHist, b.ColorHist)
	mean := 1 - MeanColorDistance(a.MeanColor, b.MeanColor)/MaxColorDistance

	score := s.weights.Diff*diff + s.weights.Color*color + s.weights.Mean*mean
	return clamp(score), nil
}

func compatible(a, b *feature.Vector) error {
	if a.Bins != b.Bins {
		return fmt.Errorf("%w: %d vs %d", pkgerrors.ErrDimensionMismatch, a.Bins, b.Bins)
	}
	n := a.Len()
	if len(a.ColorHist) != n || len(b.ColorHist) != n ||
		len(a.ColorDiffHist) != n || len(b.ColorDiffHist) != n {
		return fmt.Errorf("%w: histogram length does not match %d bins", pkgerrors.ErrDimensionMismatch, a.Bins)
	}
	return nil
}

// Intersection is the sum of per-bin minima of two equal-length histograms.
func Intersection(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += math.Min(a[i], b[i])
	}
	return s
}

// MeanColorDistance is the Euclidean distance between two RGB triplets.
func MeanColorDistance(a, b [3]float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// clamp absorbs rounding drift from summing thousands of bins.
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
