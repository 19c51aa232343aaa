package collector

import (
	"testing"

	gta "gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

func TestSnakeCase(t *testing.T) {
	tT := map[string]struct {
		in   string
		want string
	}{
		"camel case":             {"subDeviceId", "sub_device_id"},
		"already snake case":     {"sub_device_id", "sub_device_id"},
		"digit before uppercase": {"temp1Max", "temp1_max"},
		"leading uppercase":      {"DeviceName", "device_name"},
		"acronym run collapses":  {"HDDTemp", "hddtemp"},
		"single word":            {"usage", "usage"},
		"empty":                  {"", ""},
	}
	for tName, test := range tT {
		t.Run(tName, func(t *testing.T) {
			gta.Assert(t, cmp.Equal(test.want, SnakeCase(test.in)))
		})
	}
}

func TestSnakeCaseIdempotent(t *testing.T) {
	inputs := []string{"subDeviceId", "fnos_store_array_fsSize", "ramTotal", "already_done"}
	for _, in := range inputs {
		once := SnakeCase(in)
		gta.Assert(t, cmp.Equal(once, SnakeCase(once)))
	}
}
