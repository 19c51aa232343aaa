package collector

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	return NewCatalog(prometheus.NewRegistry(), testLogger())
}

// gatherFamily returns the samples of one exposed metric family, or nil
// when the family was never registered.
func gatherFamily(t *testing.T, c *Catalog, name string) []*dto.Metric {
	t.Helper()
	families, err := c.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()
		}
	}
	return nil
}

func labelMap(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, l := range m.GetLabel() {
		out[l.GetName()] = l.GetValue()
	}
	return out
}

// gatheredValue finds the one sample of a family whose labels exactly match
// the given set and returns its gauge value.
func gatheredValue(t *testing.T, c *Catalog, name string, labels map[string]string) (float64, bool) {
	t.Helper()
	for _, m := range gatherFamily(t, c, name) {
		got := labelMap(m)
		if len(got) != len(labels) {
			continue
		}
		match := true
		for k, v := range labels {
			if got[k] != v {
				match = false
				break
			}
		}
		if match {
			return m.GetGauge().GetValue(), true
		}
	}
	return 0, false
}
