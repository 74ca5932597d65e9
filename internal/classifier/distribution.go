package classifier

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DistributionTolerance bounds how far a distribution may sum away from 1.
const DistributionTolerance = 1e-6

// ErrInvalidScores reports raw model output that cannot form a probability
// distribution (NaN, infinite, negative or all-zero scores).
var ErrInvalidScores = errors.New("invalid model scores")

// Label identifies one enrolled animal.
type Label string

// Score pairs a label with its probability.
type Score struct {
	Label       Label   `json:"label"`
	Probability float64 `json:"probability"`
}

// Distribution is the classifier output, in model class order. It is never
// mutated once returned.
type Distribution []Score

// NewDistribution turns raw model output into a distribution over labels.
// With softmax the scores are treated as logits; otherwise they must already
// be non-negative and are rescaled to sum to exactly 1.
func NewDistribution(labels []Label, scores []float32, softmax bool) (Distribution, error) {
	if len(scores) != len(labels) {
		return nil, &ShapeMismatchError{
			Tensor: "output",
			Want:   []int64{int64(len(labels))},
			Got:    []int64{int64(len(scores))},
		}
	}
	if len(scores) == 0 {
		return Distribution{}, nil
	}

	values := make([]float64, len(scores))
	maxVal := math.Inf(-1)
	for i, s := range scores {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: score %d is %v", ErrInvalidScores, i, v)
		}
		if !softmax && v < 0 {
			return nil, fmt.Errorf("%w: score %d is negative (%v)", ErrInvalidScores, i, v)
		}
		values[i] = v
		if v > maxVal {
			maxVal = v
		}
	}

	if softmax {
		for i, v := range values {
			values[i] = math.Exp(v - maxVal)
		}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: scores sum to %v", ErrInvalidScores, sum)
	}

	dist := make(Distribution, len(values))
	for i, v := range values {
		dist[i] = Score{Label: labels[i], Probability: v / sum}
	}
	return dist, nil
}

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	var sum float64
	for _, s := range d {
		sum += s.Probability
	}
	return sum
}

// Validate checks that probabilities are non-negative, labels are unique
// and the total is within tol of 1. An empty distribution is valid.
func (d Distribution) Validate(tol float64) error {
	if len(d) == 0 {
		return nil
	}
	seen := make(map[Label]struct{}, len(d))
	for _, s := range d {
		if math.IsNaN(s.Probability) || s.Probability < 0 || s.Probability > 1+tol {
			return fmt.Errorf("%w: %q has probability %v", ErrInvalidScores, s.Label, s.Probability)
		}
		if _, dup := seen[s.Label]; dup {
			return fmt.Errorf("%w: duplicate label %q", ErrInvalidScores, s.Label)
		}
		seen[s.Label] = struct{}{}
	}
	if sum := d.Sum(); math.Abs(sum-1) > tol {
		return fmt.Errorf("%w: probabilities sum to %v", ErrInvalidScores, sum)
	}
	return nil
}

// Sorted returns a copy ordered by descending probability, ties broken by
// ascending label.
func (d Distribution) Sorted() Distribution {
	out := make(Distribution, len(d))
	copy(out, d)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Top returns at most k entries of Sorted.
func (d Distribution) Top(k int) Distribution {
	sorted := d.Sorted()
	if k < 0 {
		k = 0
	}
	if k < len(sorted) {
		sorted = sorted[:k]
	}
	return sorted
}
