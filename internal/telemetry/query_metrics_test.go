package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer_MaintainsCapacity(t *testing.T) {
	buf := NewCircularBuffer[string](3)

	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		buf.Add(q)
	}

	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []string{"q3", "q4", "q5"}, buf.Items())
}

func TestCircularBuffer_EmptyAndClear(t *testing.T) {
	buf := NewCircularBuffer[string](0)
	assert.Empty(t, buf.Items())

	buf.Add("a")
	buf.Clear()
	assert.Zero(t, buf.Size())
	assert.Empty(t, buf.Items())
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{500 * time.Microsecond, BucketP1},
		{5 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		t.Run(tt.latency.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyToBucket(tt.latency))
		})
	}
}

func TestQueryMetrics_Record(t *testing.T) {
	// Given: a collector without persistence
	m := NewQueryMetrics(nil)

	// When: recording a hit, a miss and a repeat
	m.Record(QueryEvent{Query: "the Cat", ResultCount: 2, Latency: 2 * time.Millisecond})
	m.Record(QueryEvent{Query: "zebra", ResultCount: 0, Latency: 200 * time.Microsecond})
	m.Record(QueryEvent{Query: "cat, THE", ResultCount: 2, Latency: 3 * time.Millisecond})

	// Then: counts, terms and repeats reflect normalized queries
	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, []string{"zebra"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(2), snap.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP1])
	assert.Equal(t, []TermCount{{"cat", 2}, {"the", 2}, {"zebra", 1}}, snap.TopTerms)
	assert.Equal(t, int64(0), snap.ExactRepeatCount, "term order differs")
	assert.Equal(t, int64(3), snap.UniqueQueryCount)
}

func TestQueryMetrics_ExactRepetition(t *testing.T) {
	m := NewQueryMetrics(nil)

	m.Record(QueryEvent{Query: "hello world", ResultCount: 1})
	m.Record(QueryEvent{Query: "  HELLO   World!", ResultCount: 1})

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.ExactRepeatCount)
	assert.Equal(t, int64(1), snap.UniqueQueryCount)
	assert.InDelta(t, 0.5, snap.RepeatRate(), 1e-9)
	assert.Equal(t, "repeats=50.0%, unique=1", snap.RepetitionSummary())
}

func TestQueryMetricsSnapshot_Empty(t *testing.T) {
	snap := NewQueryMetrics(nil).Snapshot()

	assert.Zero(t, snap.ZeroResultPercentage())
	assert.Equal(t, "No queries recorded", snap.RepetitionSummary())
}

func TestQueryMetrics_Concurrent(t *testing.T) {
	m := NewQueryMetrics(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Record(QueryEvent{Query: "cat", ResultCount: j % 2})
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(1000), snap.TotalQueries)
	assert.Equal(t, int64(500), snap.ZeroResultCount)
	assert.InDelta(t, 50.0, snap.ZeroResultPercentage(), 1e-9)
}

func TestQueryMetrics_Flush_PersistsDeltas(t *testing.T) {
	// Given: a collector backed by SQLite
	st := openTestStore(t)
	m := NewQueryMetricsWithConfig(st, QueryMetricsConfig{FlushInterval: 0})

	// When: flushing twice with a record in between each
	m.Record(QueryEvent{Query: "cat", ResultCount: 1, Latency: time.Millisecond, Timestamp: time.Now()})
	require.NoError(t, m.Flush())
	m.Record(QueryEvent{Query: "cat dog", ResultCount: 0, Latency: time.Millisecond, Timestamp: time.Now()})
	require.NoError(t, m.Close())

	// Then: each query is counted once
	top, err := st.GetTopTerms(10)
	require.NoError(t, err)
	assert.Equal(t, []TermCount{{"cat", 2}, {"dog", 1}}, top)

	zero, err := st.GetZeroResultQueries(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat dog"}, zero)

	today := time.Now().Format(time.DateOnly)
	lat, err := st.GetLatencyCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(2), lat[BucketP10])
}

func TestQueryMetrics_RecordAfterClose(t *testing.T) {
	m := NewQueryMetrics(nil)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	m.Record(QueryEvent{Query: "late"})
	assert.Zero(t, m.Snapshot().TotalQueries)
}
