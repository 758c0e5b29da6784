package telemetry

import (
	"time"
)

// QueryReport summarizes persisted query telemetry for 'srch stats'.
type QueryReport struct {
	Days                int                     `json:"days"`
	TotalQueries        int64                   `json:"total_queries"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
}

// LoadReport reads the last days of latency counts and the top limit terms
// and zero-result queries from s.
func LoadReport(s QueryMetricsStore, days, limit int, now time.Time) (*QueryReport, error) {
	if days <= 0 {
		days = 1
	}
	to := now.Format(time.DateOnly)
	from := now.AddDate(0, 0, -(days - 1)).Format(time.DateOnly)

	latencies, err := s.GetLatencyCounts(from, to)
	if err != nil {
		return nil, err
	}
	top, err := s.GetTopTerms(limit)
	if err != nil {
		return nil, err
	}
	zero, err := s.GetZeroResultQueries(limit)
	if err != nil {
		return nil, err
	}

	r := &QueryReport{
		Days:                days,
		TopTerms:            top,
		ZeroResultQueries:   zero,
		LatencyDistribution: latencies,
	}
	for _, n := range latencies {
		r.TotalQueries += n
	}
	return r, nil
}
