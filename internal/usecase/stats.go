package usecase

import (
	"sync"
	"time"

	"github.com/example/cattle-id/internal/identify"
)

// StatsSummary represents aggregated identification counters since start.
type StatsSummary struct {
	TotalRequests      int64            `json:"total_requests"`
	Identified         int64            `json:"identified"`
	LowConfidence      int64            `json:"low_confidence"`
	Failed             int64            `json:"failed"`
	CacheHits          int64            `json:"cache_hits"`
	IdentificationRate float64          `json:"identification_rate"`
	AverageConfidence  float64          `json:"average_confidence"`
	AverageLatencyMs   float64          `json:"average_latency_ms"`
	FailuresByKind     map[string]int64 `json:"failures_by_kind,omitempty"`
}

// Stats holds in-process counters. Nothing about individual sightings is kept.
type Stats struct {
	mu             sync.Mutex
	total          int64
	identified     int64
	lowConfidence  int64
	failed         int64
	cacheHits      int64
	confidenceSum  float64
	confidenceSeen int64
	latencySum     time.Duration
	failures       map[identify.Kind]int64
}

func newStats() *Stats {
	return &Stats{failures: make(map[identify.Kind]int64)}
}

func (s *Stats) record(resp *identify.Response, err error, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.latencySum += latency
	if err != nil {
		s.failed++
		s.failures[identify.KindOf(err)]++
		return
	}
	if resp.Identified {
		s.identified++
	} else {
		s.lowConfidence++
	}
	s.confidenceSum += resp.Confidence
	s.confidenceSeen++
}

func (s *Stats) cacheHit() {
	s.mu.Lock()
	s.cacheHits++
	s.mu.Unlock()
}

// Summary returns a consistent snapshot of the counters.
func (s *Stats) Summary() StatsSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := StatsSummary{
		TotalRequests: s.total,
		Identified:    s.identified,
		LowConfidence: s.lowConfidence,
		Failed:        s.failed,
		CacheHits:     s.cacheHits,
	}
	if s.total > 0 {
		summary.IdentificationRate = float64(s.identified) / float64(s.total)
		summary.AverageLatencyMs = float64(s.latencySum.Microseconds()) / 1000 / float64(s.total)
	}
	if s.confidenceSeen > 0 {
		summary.AverageConfidence = s.confidenceSum / float64(s.confidenceSeen)
	}
	if len(s.failures) > 0 {
		summary.FailuresByKind = make(map[string]int64, len(s.failures))
		for k, v := range s.failures {
			summary.FailuresByKind[string(k)] = v
		}
	}
	return summary
}
