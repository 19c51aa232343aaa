package collector

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Catalog) {
	t.Helper()
	catalog := newTestCatalog(t)
	return NewDispatcher(catalog, testLogger()), catalog
}

func TestDispatchNumericBecomesGauge(t *testing.T) {
	d, catalog := newTestDispatcher(t)

	id := Resolve(FamilyCPU, "usage", EntityContext{Name: "Intel"})
	d.Dispatch(id, "usage", 12.5)

	got, ok := gatheredValue(t, catalog, "fnos_cpu_usage", map[string]string{"cpu_name": "Intel"})
	require.True(t, ok)
	require.Equal(t, 12.5, got)
}

func TestDispatchTemperatureListExpandsPerCore(t *testing.T) {
	d, catalog := newTestDispatcher(t)

	id := Resolve(FamilyCPU, "temp", EntityContext{Name: "Intel"})
	d.Dispatch(id, "temp", []any{40.0, 41.0, 42.0})

	metrics := gatherFamily(t, catalog, "fnos_cpu_temp")
	require.Len(t, metrics, 3)
	for i, want := range []float64{40.0, 41.0, 42.0} {
		got, ok := gatheredValue(t, catalog, "fnos_cpu_temp", map[string]string{
			"cpu_name": "Intel",
			"core":     strconv.Itoa(i),
		})
		require.True(t, ok, "missing sample for core %d", i)
		require.Equal(t, want, got)
	}
}

func TestDispatchUnknownListIsSkipped(t *testing.T) {
	d, catalog := newTestDispatcher(t)

	id := Resolve(FamilyMemory, "banks", EntityContext{})
	d.Dispatch(id, "banks", []any{1.0, 2.0})

	require.Nil(t, gatherFamily(t, catalog, "fnos_memory_banks"))
}

func TestDispatchNonNumericListIsSkipped(t *testing.T) {
	d, catalog := newTestDispatcher(t)

	id := Resolve(FamilyCPU, "temp", EntityContext{Name: "Intel"})
	d.Dispatch(id, "temp", []any{"hot", "hotter"})

	require.Nil(t, gatherFamily(t, catalog, "fnos_cpu_temp"))
}

func TestDispatchTextualBecomesInfo(t *testing.T) {
	d, catalog := newTestDispatcher(t)

	id := Resolve(FamilyDisk, "model", EntityContext{Name: "sda"})
	d.Dispatch(id, "model", "WDC WD40EFRX")

	got, ok := gatheredValue(t, catalog, "fnos_disk_model_info", map[string]string{
		"device_name": "sda",
		"model":       "WDC WD40EFRX",
	})
	require.True(t, ok)
	require.Equal(t, float64(1), got)
}

func TestDispatchBooleanAndNullAreTextual(t *testing.T) {
	d, catalog := newTestDispatcher(t)

	d.Dispatch(Resolve(FamilyDisk, "removable", EntityContext{Name: "sda"}), "removable", true)
	d.Dispatch(Resolve(FamilyDisk, "serial", EntityContext{Name: "sda"}), "serial", nil)

	_, ok := gatheredValue(t, catalog, "fnos_disk_removable_info", map[string]string{
		"device_name": "sda",
		"removable":   "true",
	})
	require.True(t, ok)
	_, ok = gatheredValue(t, catalog, "fnos_disk_serial_info", map[string]string{
		"device_name": "sda",
		"serial":      "null",
	})
	require.True(t, ok)
}

func TestDispatchTextualValueReplacedAcrossCycles(t *testing.T) {
	d, catalog := newTestDispatcher(t)

	id := Resolve(FamilyNone, "hostname", EntityContext{})
	d.Dispatch(id, "hostname", "nas-old")
	d.Dispatch(id, "hostname", "nas-new")

	// Only the current value may be exposed; the stale child is deleted
	// when the value changes.
	metrics := gatherFamily(t, catalog, "fnos_hostname_info")
	require.Len(t, metrics, 1)
	require.Equal(t, map[string]string{"hostname": "nas-new"}, labelMap(metrics[0]))
	require.Equal(t, float64(1), metrics[0].GetGauge().GetValue())
}

func TestDispatchTextualValuesTrackedPerEntity(t *testing.T) {
	d, catalog := newTestDispatcher(t)

	d.Dispatch(Resolve(FamilyDisk, "model", EntityContext{Name: "sda"}), "model", "WDC WD40EFRX")
	d.Dispatch(Resolve(FamilyDisk, "model", EntityContext{Name: "sdb"}), "model", "ST4000VN008")
	// sda's model changes; sdb's stays.
	d.Dispatch(Resolve(FamilyDisk, "model", EntityContext{Name: "sda"}), "model", "WDC WD80EFAX")

	metrics := gatherFamily(t, catalog, "fnos_disk_model_info")
	require.Len(t, metrics, 2)
	_, ok := gatheredValue(t, catalog, "fnos_disk_model_info", map[string]string{
		"device_name": "sda",
		"model":       "WDC WD80EFAX",
	})
	require.True(t, ok)
	_, ok = gatheredValue(t, catalog, "fnos_disk_model_info", map[string]string{
		"device_name": "sdb",
		"model":       "ST4000VN008",
	})
	require.True(t, ok)
}

func TestDispatchRepeatedCyclesReuseSeries(t *testing.T) {
	d, catalog := newTestDispatcher(t)

	id := Resolve(FamilyStore, "fssize", EntityContext{Type: "array", Index: "0", Name: "dm-1"})
	d.Dispatch(id, "fssize", 9000409726976.0)
	d.Dispatch(id, "fssize", 9000409726977.0)

	metrics := gatherFamily(t, catalog, "fnos_store_array_fssize")
	require.Len(t, metrics, 1)
	require.Equal(t, 9000409726977.0, metrics[0].GetGauge().GetValue())
	require.Equal(t, map[string]string{
		"array_name": "dm-1",
		"type":       "array",
	}, labelMap(metrics[0]))
}

func TestEmitFlattenedResolvesNestedIdentity(t *testing.T) {
	d, catalog := newTestDispatcher(t)

	ent := map[string]any{
		"device": "Radeon Graphics",
		"memory": map[string]any{
			"ramTotal": 536870912.0,
			"ramUsed":  134217728.0,
		},
	}
	emitFlattened(d, testLogger(), FamilyGPU, ent, EntityContext{Index: "0"})

	got, ok := gatheredValue(t, catalog, "fnos_gpu_memory_ram_total", map[string]string{
		"device_name": "Radeon Graphics",
	})
	require.True(t, ok)
	require.Equal(t, 536870912.0, got)
	got, ok = gatheredValue(t, catalog, "fnos_gpu_memory_ram_used", map[string]string{
		"device_name": "Radeon Graphics",
	})
	require.True(t, ok)
	require.Equal(t, 134217728.0, got)
}

func TestAsFloat(t *testing.T) {
	for _, v := range []any{1.0, float32(1), 1, int32(1), int64(1), uint64(1)} {
		got, ok := asFloat(v)
		require.True(t, ok, "%T should be numeric", v)
		require.Equal(t, 1.0, got)
	}
	for _, v := range []any{"1", true, nil, []any{1.0}} {
		_, ok := asFloat(v)
		require.False(t, ok, "%T should not be numeric", v)
	}
}
