package collector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreCollectorPublishesSubRecords(t *testing.T) {
	d, catalog := newTestDispatcher(t)
	session := newFakeSession(map[string]map[string]any{
		reqStoreGeneral: {"data": map[string]any{
			"array": []any{
				map[string]any{
					"name":   "dm-1",
					"fssize": 9000409726976.0,
					"md": []any{
						map[string]any{"level": 1.0},
					},
				},
			},
			"block": []any{
				map[string]any{
					"name": "sda",
					"size": 4000787030016.0,
					"partitions": []any{
						map[string]any{"size": 4000785964544.0},
					},
					"arr-devices": []any{
						map[string]any{"slot": 0.0},
					},
				},
			},
		}},
	})

	require.NoError(t, NewStoreCollector(d, testLogger()).Collect(context.Background(), session))

	got, ok := gatheredValue(t, catalog, "fnos_store_array_fssize", map[string]string{
		"array_name": "dm-1",
		"type":       "array",
	})
	require.True(t, ok)
	require.Equal(t, 9000409726976.0, got)

	// md sub-records never carry a name; they key on the composite index.
	got, ok = gatheredValue(t, catalog, "fnos_store_array_md_level", map[string]string{
		"entity": "0_0",
		"type":   "array_md",
	})
	require.True(t, ok)
	require.Equal(t, float64(1), got)

	got, ok = gatheredValue(t, catalog, "fnos_store_block_size", map[string]string{
		"block_name": "sda",
		"type":       "block",
	})
	require.True(t, ok)
	require.Equal(t, 4000787030016.0, got)

	_, ok = gatheredValue(t, catalog, "fnos_store_block_partition_size", map[string]string{
		"entity": "0_0",
		"type":   "block_partition",
	})
	require.True(t, ok)

	_, ok = gatheredValue(t, catalog, "fnos_store_block_arr_device_slot", map[string]string{
		"entity": "0_0",
		"type":   "block_arr_device",
	})
	require.True(t, ok)

	// The sub-lists must not leak into the parent record.
	require.Nil(t, gatherFamily(t, catalog, "fnos_store_array_md"))
}

func TestStoreCollectorRequiresArrayOrBlock(t *testing.T) {
	d, _ := newTestDispatcher(t)
	session := newFakeSession(map[string]map[string]any{
		reqStoreGeneral: {"data": map[string]any{"other": 1.0}},
	})
	err := NewStoreCollector(d, testLogger()).Collect(context.Background(), session)
	require.ErrorContains(t, err, "no array or block data")
}

func TestDiskListShapes(t *testing.T) {
	tT := map[string]struct {
		payload map[string]any
		wantLen int
		wantOK  bool
	}{
		"top-level disk list": {
			payload: map[string]any{"disk": []any{map[string]any{"name": "sda"}}},
			wantLen: 1,
			wantOK:  true,
		},
		"data as bare list": {
			payload: map[string]any{"data": []any{map[string]any{"name": "sda"}, map[string]any{"name": "sdb"}}},
			wantLen: 2,
			wantOK:  true,
		},
		"disk list nested under data": {
			payload: map[string]any{"data": map[string]any{"disk": []any{map[string]any{"name": "sda"}}}},
			wantLen: 1,
			wantOK:  true,
		},
		"no list anywhere": {
			payload: map[string]any{"data": map[string]any{"other": 1.0}},
			wantOK:  false,
		},
	}
	for tName, test := range tT {
		t.Run(tName, func(t *testing.T) {
			got, ok := diskList(test.payload)
			require.Equal(t, test.wantOK, ok)
			require.Len(t, got, test.wantLen)
		})
	}
}

func TestSMARTCollectorMapsVerdictAndNamesDisk(t *testing.T) {
	d, catalog := newTestDispatcher(t)
	session := newFakeSession(map[string]map[string]any{
		reqDiskList: {"data": map[string]any{
			"disk": []any{
				map[string]any{"name": "sda"},
				map[string]any{"name": "sdb"},
			},
		}},
		reqDiskSMART: {"smart": map[string]any{
			"smart_status": map[string]any{"passed": false},
			"temperature":  map[string]any{"current": 36.0},
		}},
	})

	require.NoError(t, NewSMARTCollector(d, testLogger()).Collect(context.Background(), session))

	// The SMART payload never names the disk; the queried name becomes the
	// identity, and the pass verdict is numeric.
	got, ok := gatheredValue(t, catalog, "fnos_disk_smart_smart_status_passed", map[string]string{"device_name": "sda"})
	require.True(t, ok)
	require.Equal(t, float64(0), got)

	got, ok = gatheredValue(t, catalog, "fnos_disk_smart_temperature_current", map[string]string{"device_name": "sdb"})
	require.True(t, ok)
	require.Equal(t, 36.0, got)

	// SMART fields stay out of the namespace the inventory and
	// performance collectors publish under.
	require.Nil(t, gatherFamily(t, catalog, "fnos_disk_temperature_current"))
}

func TestSMARTCollectorSkipsPerDiskFailures(t *testing.T) {
	d, _ := newTestDispatcher(t)
	session := newFakeSession(map[string]map[string]any{
		reqDiskList: {"data": map[string]any{
			"disk": []any{map[string]any{"name": "sda"}},
		}},
		reqDiskSMART: {"nodata": map[string]any{}},
	})

	// A disk whose SMART query yields no usable data is logged and skipped,
	// not an error for the family.
	require.NoError(t, NewSMARTCollector(d, testLogger()).Collect(context.Background(), session))
}
