// Package identify defines the identification request and response records
// and merges a resolved identity with location and husbandry data.
package identify

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/cattle-id/internal/classifier"
	"github.com/example/cattle-id/internal/husbandry"
)

// Unidentified is reported as the label when no identity met the threshold.
const Unidentified = "unidentified"

// ErrInvalidLocation rejects coordinates outside the WGS84 ranges.
var ErrInvalidLocation = errors.New("invalid location")

// RawImage is an uploaded photograph, owned by a single request.
type RawImage struct {
	Data      []byte
	MediaType string
}

// LocationFix is a GPS position supplied by the caller.
type LocationFix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks latitude in [-90,90] and longitude in [-180,180].
func (f LocationFix) Validate() error {
	if math.IsNaN(f.Latitude) || f.Latitude < -90 || f.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90,90]", ErrInvalidLocation, f.Latitude)
	}
	if math.IsNaN(f.Longitude) || f.Longitude < -180 || f.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180,180]", ErrInvalidLocation, f.Longitude)
	}
	return nil
}

// Candidate is a runner-up label offered when no identity was accepted.
type Candidate struct {
	CowID      string  `json:"cow_id"`
	Confidence float64 `json:"confidence"`
}

// Response is serialized once per request. Location and Husbandry are
// omitted, not zeroed, when absent.
type Response struct {
	RequestID    string             `json:"request_id,omitempty"`
	CowID        string             `json:"cow_id"`
	Identified   bool               `json:"identified"`
	Confidence   float64            `json:"confidence"`
	Location     *LocationFix       `json:"location,omitempty"`
	Husbandry    *husbandry.Profile `json:"husbandry,omitempty"`
	Alternatives []Candidate        `json:"alternatives,omitempty"`
}

// CandidatesFrom converts runner-up scores into response candidates.
func CandidatesFrom(dist classifier.Distribution) []Candidate {
	if len(dist) == 0 {
		return nil
	}
	out := make([]Candidate, len(dist))
	for i, s := range dist {
		out[i] = Candidate{CowID: string(s.Label), Confidence: s.Probability}
	}
	return out
}
