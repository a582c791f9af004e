package observability

import (
	"context"
	"fmt"
	"testing"

	"medpassport/internal/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestManager(t *testing.T) *ObservabilityManager {
	t.Helper()
	om, err := NewObservabilityManager(ObservabilityConfig{
		ServiceName:    "medpassport-test",
		ServiceVersion: "test",
		Enabled:        true,
		SampleRate:     1.0,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, om.manualReader)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })
	return om
}

func collectSums(t *testing.T, om *ObservabilityManager) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, om.manualReader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestAICallTrackerRecordsRequestsAndErrors(t *testing.T) {
	om := newTestManager(t)
	track := om.AICallTracker()

	err := track(context.Background(), "classify_chunk", func(ctx context.Context) (*ai.TokenUsage, error) {
		return &ai.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, nil
	})
	require.NoError(t, err)

	boom := fmt.Errorf("quota exceeded")
	err = track(context.Background(), "classify_chunk", func(ctx context.Context) (*ai.TokenUsage, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	sums := collectSums(t, om)
	assert.Equal(t, int64(2), sums["medpassport_ai_requests_total"])
	assert.Equal(t, int64(1), sums["medpassport_ai_errors_total"])
}

func TestRecordBusinessMetric(t *testing.T) {
	om := newTestManager(t)
	m := om.GetMetrics()
	ctx := context.Background()

	m.RecordBusinessMetric(ctx, MetricRowCreated, true, om, attribute.String("table", "rotations"))
	m.RecordBusinessMetric(ctx, MetricRowCreated, true, om, attribute.String("table", "procedures"))
	m.RecordBusinessMetric(ctx, MetricReportExported, true, om, attribute.String("format", "pdf"))
	m.RecordBusinessMetric(ctx, MetricLogin, false, om)
	m.RecordBusinessMetric(ctx, "unknown", true, om)

	sums := collectSums(t, om)
	assert.Equal(t, int64(2), sums["medpassport_rows_created_total"])
	assert.Equal(t, int64(1), sums["medpassport_reports_exported_total"])
	assert.Equal(t, int64(1), sums["medpassport_logins_total"])
}

func TestDisabledManagerIsInert(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{Enabled: false}, nil)
	require.NoError(t, err)

	called := false
	err = om.AICallTracker()(context.Background(), "classify_chunk", func(ctx context.Context) (*ai.TokenUsage, error) {
		called = true
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	om.GetMetrics().RecordBusinessMetric(context.Background(), MetricCVParsed, true, om)
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestGetObservabilityConfigFallsBackToAppVersion(t *testing.T) {
	cfg := GetObservabilityConfig(nil, "1.2.3")
	assert.Equal(t, "medpassport", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.False(t, cfg.Enabled)
}
