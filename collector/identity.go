package collector

import "fmt"

// Family identifies a resource family on the appliance. The family name is
// part of every canonical metric name this exporter emits.
type Family string

const (
	// FamilyNone is used for appliance-level records (uptime, host name)
	// that are published under the bare "fnos_" prefix.
	FamilyNone    Family = ""
	FamilyCPU     Family = "cpu"
	FamilyGPU     Family = "gpu"
	FamilyMemory  Family = "memory"
	FamilyDisk    Family = "disk"
	FamilyNetwork Family = "network"
	FamilyStore   Family = "store"
)

// EntityContext carries what a family collector knows about the entity a
// flattened record came from, extracted before flattening.
type EntityContext struct {
	// Type is the storage entity type ("array", "array_md", "block",
	// "block_md", "block_partition", "block_arr_device"); empty for every
	// other family.
	Type string
	// Index is the stringified position of the entity in the source list.
	// Sub-records use the composite "<index>_<subindex>" form. Empty when
	// the record is not list-borne.
	Index string
	// Name is the entity's identity field, when one exists. Collectors may
	// also supply it out-of-band (the SMART collector passes the disk name
	// it queried, which never appears inside the SMART payload itself).
	Name string
}

// Identity is the resolved identity of one series: its canonical exposed
// name, the ordered label set to attach, and the catalog lookup key that
// makes repeated registration idempotent.
type Identity struct {
	Family      Family
	Name        string
	Help        string
	LabelKeys   []string
	LabelValues []string
	// LookupKey is a deterministic function of everything that separates
	// two series handles. Entities with a stable identity label share one
	// handle per entity; index-only entities fold the index and entity
	// type in, since bare indices are not guaranteed stable across polls.
	LookupKey string
}

func (id *Identity) addLabel(key, value string) {
	id.LabelKeys = append(id.LabelKeys, key)
	id.LabelValues = append(id.LabelValues, value)
}

// EntityName picks the per-family identity field out of a flattened record.
// The second return reports whether the record carried one at all.
func EntityName(family Family, rec Flat) (string, bool) {
	var candidates []string
	switch family {
	case FamilyCPU:
		candidates = []string{"name", "cpu_name"}
	case FamilyGPU:
		candidates = []string{"device"}
	case FamilyDisk:
		candidates = []string{"name", "disk_name"}
	case FamilyNetwork:
		candidates = []string{"name", "if_name"}
	case FamilyStore:
		candidates = []string{"name"}
	default:
		return "", false
	}
	for _, k := range candidates {
		if v, ok := rec[k]; ok && v != nil {
			return fmt.Sprintf("%v", v), true
		}
	}
	return "", false
}

// Resolve maps one flattened key to the identity of the series it feeds.
// The canonical name is "fnos_<family>[_<entitytype>]_<key>", snake-cased as
// a whole so key fragments that originated from mixed-case values are
// normalized too.
func Resolve(family Family, key string, ctx EntityContext) Identity {
	name := "fnos"
	if family != FamilyNone {
		name += "_" + string(family)
	}
	if ctx.Type != "" {
		name += "_" + ctx.Type
	}
	name = SnakeCase(name + "_" + key)

	id := Identity{
		Family:    family,
		Name:      name,
		Help:      helpFor(family, ctx.Type, key),
		LookupKey: name,
	}

	switch family {
	case FamilyCPU:
		// No stable fallback exists for CPUs; an unnamed CPU record is
		// published without an identity label.
		if ctx.Name != "" {
			id.addLabel("cpu_name", ctx.Name)
			id.LookupKey = name + "|" + ctx.Name
		}
	case FamilyGPU:
		// Aggregate GPU metrics (the device count) carry no entity at all.
		if ctx.Name == "" && ctx.Index == "" {
			break
		}
		device := ctx.Name
		if device == "" {
			device = "gpu_" + ctx.Index
		}
		id.addLabel("device_name", device)
		id.LookupKey = name + "|" + device
	case FamilyDisk:
		if ctx.Name != "" {
			id.addLabel("device_name", ctx.Name)
			id.LookupKey = name + "|" + ctx.Name
		}
	case FamilyNetwork:
		if ctx.Name != "" {
			id.addLabel("interface_name", ctx.Name)
			id.LookupKey = name + "|" + ctx.Name
		}
	case FamilyStore:
		resolveStore(&id, ctx)
	}
	return id
}

// resolveStore applies the storage label policy. Arrays are identified by
// name with the list index as fallback; top-level blocks, partitions, and
// array member devices use their name when present and a generic entity
// index otherwise; md sub-records only ever have the composite index.
func resolveStore(id *Identity, ctx EntityContext) {
	switch ctx.Type {
	case "array":
		value := ctx.Name
		if value == "" {
			value = ctx.Index
		}
		id.addLabel("array_name", value)
		id.LookupKey = id.Name + "|" + value
	case "block", "block_partition", "block_arr_device":
		if ctx.Name != "" {
			id.addLabel("block_name", ctx.Name)
			id.LookupKey = id.Name + "|" + ctx.Name
		} else {
			id.addLabel("entity", ctx.Index)
			id.LookupKey = id.Name + "|" + ctx.Index + "|" + ctx.Type
		}
	default:
		id.addLabel("entity", ctx.Index)
		id.LookupKey = id.Name + "|" + ctx.Index + "|" + ctx.Type
	}
	if ctx.Type != "" {
		id.addLabel("type", ctx.Type)
	}
}

func helpFor(family Family, entityType, key string) string {
	switch {
	case family == FamilyNone:
		return fmt.Sprintf("fnOS metric for %s", key)
	case family == FamilyStore && entityType != "":
		return fmt.Sprintf("fnOS store %s metric for %s", entityType, key)
	default:
		return fmt.Sprintf("fnOS %s metric for %s", family, key)
	}
}
