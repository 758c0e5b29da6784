package telemetry

import (
	"context"
	"time"

	"github.com/rpopa-dp/srch/internal/store"
)

// InstrumentedIndex records Prometheus metrics and query telemetry around
// an Index. Either recorder may be nil.
type InstrumentedIndex struct {
	store.Index
	metrics *Metrics
	queries *QueryMetrics
}

// NewInstrumentedIndex wraps inner.
func NewInstrumentedIndex(inner store.Index, metrics *Metrics, queries *QueryMetrics) *InstrumentedIndex {
	return &InstrumentedIndex{Index: inner, metrics: metrics, queries: queries}
}

// Add records latency and outcome of the add.
func (i *InstrumentedIndex) Add(ctx context.Context, doc *store.Document) error {
	start := time.Now()
	err := i.Index.Add(ctx, doc)
	if i.metrics == nil {
		return err
	}

	if err != nil {
		i.metrics.IndexErrorsTotal.Inc()
		return err
	}
	i.metrics.AddLatency.Observe(time.Since(start).Seconds())
	i.metrics.DocsIndexedTotal.Inc()
	return nil
}

// Search records latency, result count and the query itself.
func (i *InstrumentedIndex) Search(ctx context.Context, query string) ([]*store.Result, error) {
	start := time.Now()
	results, err := i.Index.Search(ctx, query)
	elapsed := time.Since(start)

	if i.metrics != nil {
		switch {
		case err != nil:
			i.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		case len(results) == 0:
			i.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		default:
			i.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
		}
		if err == nil {
			i.metrics.SearchLatency.Observe(elapsed.Seconds())
			i.metrics.SearchResultsCount.Observe(float64(len(results)))
		}
	}

	if i.queries != nil && err == nil {
		i.queries.Record(QueryEvent{
			Query:       query,
			ResultCount: len(results),
			Latency:     elapsed,
			Timestamp:   start,
		})
	}
	return results, err
}
