package control_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/momentics/flowport/api"
	"github.com/momentics/flowport/control"
)

type fakeSource struct {
	name  string
	stats api.PortStats
}

func (f *fakeSource) Name() string         { return f.name }
func (f *fakeSource) Stats() api.PortStats { return f.stats }

func TestMetricsRegistrySnapshot(t *testing.T) {
	mr := control.NewMetricsRegistry()
	mr.Register(&fakeSource{name: "out0", stats: api.PortStats{TotalElements: 42, TotalBuffers: 2}})
	mr.Register(&fakeSource{name: "out1", stats: api.PortStats{TotalMessages: 7}})

	snap := mr.Snapshot()
	require.Len(t, snap, 2)
	require.EqualValues(t, 42, snap["out0"].TotalElements)
	require.EqualValues(t, 7, snap["out1"].TotalMessages)
}

func TestCollectorExportsPortCounters(t *testing.T) {
	mr := control.NewMetricsRegistry()
	mr.Register(&fakeSource{name: "out0", stats: api.PortStats{
		TotalElements: 100, TotalBuffers: 3, TotalLabels: 1, TotalMessages: 5,
	}})

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(control.NewCollector(mr)))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 4)

	byName := map[string]float64{}
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			byName[fam.GetName()] = m.GetCounter().GetValue()
			require.Equal(t, "out0", m.GetLabel()[0].GetValue())
		}
	}
	require.Equal(t, 100.0, byName["flowport_total_elements"])
	require.Equal(t, 3.0, byName["flowport_total_buffers"])
	require.Equal(t, 1.0, byName["flowport_total_labels"])
	require.Equal(t, 5.0, byName["flowport_total_messages"])
}
