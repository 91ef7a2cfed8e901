package obsmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabstream/tabstream/pkg/pipeline/metrics"
)

func TestCollectorExposesSnapshotValues(t *testing.T) {
	m := metrics.New()
	m.AddBytesRead(1024)
	m.AddRowsParsed(42)

	c := NewCollector("/tmp/data.csv", m)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "tabstream_rows_parsed_total" {
			continue
		}
		found = true
		require.Len(t, mf.Metric, 1)
		assert.Equal(t, float64(42), mf.Metric[0].GetCounter().GetValue())
		assert.Equal(t, "stream", mf.Metric[0].Label[0].GetName())
		assert.Equal(t, "/tmp/data.csv", mf.Metric[0].Label[0].GetValue())
	}
	assert.True(t, found, "expected tabstream_rows_parsed_total to be registered")
}
