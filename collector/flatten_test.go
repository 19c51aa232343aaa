package collector

import (
	"testing"

	gta "gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestFlatten(t *testing.T) {
	tT := map[string]struct {
		in      any
		prefix  string
		want    Flat
		wantErr bool
	}{
		"nested maps join with normalized segments": {
			in: map[string]any{
				"mem": map[string]any{
					"memTotal": 100.0,
					"swap": map[string]any{
						"swapFree": 2.0,
					},
				},
				"hostName": "nas",
			},
			want: Flat{
				"mem_mem_total":      100.0,
				"mem_swap_swap_free": 2.0,
				"host_name":          "nas",
			},
		},
		"lists bind as leaves": {
			in: map[string]any{
				"temp": []any{40.0, 41.0},
			},
			want: Flat{
				"temp": []any{40.0, 41.0},
			},
		},
		"prefix is prepended": {
			in:     map[string]any{"usage": 1.0},
			prefix: "cpu",
			want:   Flat{"cpu_usage": 1.0},
		},
		"empty map flattens to empty": {
			in:   map[string]any{},
			want: Flat{},
		},
		"nil leaves are preserved": {
			in:   map[string]any{"serial": nil},
			want: Flat{"serial": nil},
		},
		"non-map top level is an error": {
			in:      []any{1.0, 2.0},
			wantErr: true,
		},
	}
	for tName, test := range tT {
		t.Run(tName, func(t *testing.T) {
			got, err := Flatten(test.in, test.prefix)
			if test.wantErr {
				gta.Assert(t, cmp.ErrorIs(err, ErrNotAMap))
				return
			}
			gta.NilError(t, err)
			gta.Assert(t, cmp.DeepEqual(test.want, got))
		})
	}
}
