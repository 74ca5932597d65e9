// Package resolver turns a score distribution into an identity decision.
package resolver

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/cattle-id/internal/classifier"
)

var (
	// ErrEmptyDistribution is returned instead of a default label.
	ErrEmptyDistribution = errors.New("score distribution is empty")
	// ErrInvalidThreshold rejects a minimum confidence outside [0,1].
	ErrInvalidThreshold = errors.New("minimum confidence must be within [0,1]")
)

// Result is the top-scoring label and its probability. LowConfidence marks a
// candidate that did not reach the acceptance threshold; it is a valid
// outcome, not an error.
type Result struct {
	Label         classifier.Label
	Confidence    float64
	LowConfidence bool
}

// Identified reports whether the result asserts an identity.
func (r Result) Identified() bool {
	return !r.LowConfidence
}

// Resolve picks the label with the highest probability. Exact ties go to the
// lexicographically smallest label. A NaN, infinite or negative probability
// fails with classifier.ErrInvalidScores.
func Resolve(dist classifier.Distribution, minConfidence float64) (Result, error) {
	if len(dist) == 0 {
		return Result{}, ErrEmptyDistribution
	}
	if !(minConfidence >= 0 && minConfidence <= 1) {
		return Result{}, fmt.Errorf("%w: got %v", ErrInvalidThreshold, minConfidence)
	}

	for _, s := range dist {
		if math.IsNaN(s.Probability) || math.IsInf(s.Probability, 0) || s.Probability < 0 {
			return Result{}, fmt.Errorf("%w: %s has probability %v", classifier.ErrInvalidScores, s.Label, s.Probability)
		}
	}

	best := dist[0]
	for _, s := range dist[1:] {
		if s.Probability > best.Probability || (s.Probability == best.Probability && s.Label < best.Label) {
			best = s
		}
	}

	confidence := clamp(best.Probability)
	return Result{
		Label:         best.Label,
		Confidence:    confidence,
		LowConfidence: confidence < minConfidence,
	}, nil
}

// Alternatives returns up to k runner-up candidates after the top label.
func Alternatives(dist classifier.Distribution, k int) classifier.Distribution {
	if k <= 0 || len(dist) < 2 {
		return nil
	}
	runnersUp := dist.Top(k + 1)[1:]
	for i := range runnersUp {
		runnersUp[i].Probability = clamp(runnersUp[i].Probability)
	}
	return runnersUp
}

func clamp(p float64) float64 {
	switch {
	case p != p || p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
