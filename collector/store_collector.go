package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Storage entity types, used both as a name segment and as the type label.
const (
	entityArray          = "array"
	entityArrayMD        = "array_md"
	entityBlock          = "block"
	entityBlockMD        = "block_md"
	entityBlockPartition = "block_partition"
	entityBlockArrDevice = "block_arr_device"
)

// storeSubLists maps a block entity's nested list fields to their entity
// types. md lists also appear under arrays.
var storeSubLists = map[string]string{
	"md":          entityBlockMD,
	"partitions":  entityBlockPartition,
	"arr-devices": entityBlockArrDevice,
}

// StoreCollector publishes storage pool metrics: top-level arrays and block
// devices plus their md, partition, and array member device sub-records.
// Sub-records are indexed by the composite "<parent>_<child>" position.
type StoreCollector struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewStoreCollector(d *Dispatcher, logger *slog.Logger) *StoreCollector {
	return &StoreCollector{dispatcher: d, logger: logger.With(slog.String("collector", "store"))}
}

func (c *StoreCollector) Name() string { return "store" }

func (c *StoreCollector) Collect(ctx context.Context, s Session) error {
	payload, err := s.Request(ctx, reqStoreGeneral, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", reqStoreGeneral, err)
	}
	data, ok := payloadData(payload)
	if !ok {
		return fmt.Errorf("no data in store response")
	}
	tree, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected store data shape %T", data)
	}

	arrays, hasArrays := listField(tree, "array")
	blocks, hasBlocks := listField(tree, "block")
	if !hasArrays && !hasBlocks {
		return fmt.Errorf("no array or block data in store response")
	}

	for i, ent := range arrays {
		c.emitEntity(ent, entityArray, strconv.Itoa(i), map[string]string{"md": entityArrayMD})
	}
	for i, ent := range blocks {
		c.emitEntity(ent, entityBlock, strconv.Itoa(i), storeSubLists)
	}
	return nil
}

// emitEntity publishes one storage entity, stripping its nested sub-lists
// from the main record and publishing each sub-record under its own entity
// type with a composite index.
func (c *StoreCollector) emitEntity(ent any, entityType, index string, subLists map[string]string) {
	tree, ok := ent.(map[string]any)
	if !ok {
		c.logger.Warn("skipping malformed store entity",
			slog.String("entity_type", entityType),
			slog.String("entity", index),
		)
		return
	}

	main := make(map[string]any, len(tree))
	for k, v := range tree {
		if _, nested := subLists[k]; !nested {
			main[k] = v
		}
	}
	emitFlattened(c.dispatcher, c.logger, FamilyStore, main, EntityContext{Type: entityType, Index: index})

	for field, subType := range subLists {
		subs, ok := listField(tree, field)
		if !ok {
			continue
		}
		for j, sub := range subs {
			emitFlattened(c.dispatcher, c.logger, FamilyStore, sub, EntityContext{
				Type:  subType,
				Index: index + "_" + strconv.Itoa(j),
			})
		}
	}
}

// DiskCollector publishes the disk inventory. Hot spares are excluded, as
// they carry no useful runtime state. The appliance has been seen nesting
// the list at several depths, so every known shape is accepted.
type DiskCollector struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewDiskCollector(d *Dispatcher, logger *slog.Logger) *DiskCollector {
	return &DiskCollector{dispatcher: d, logger: logger.With(slog.String("collector", "disk"))}
}

func (c *DiskCollector) Name() string { return "disk" }

func (c *DiskCollector) Collect(ctx context.Context, s Session) error {
	payload, err := s.Request(ctx, reqDiskList, map[string]any{"no_hot_spare": true})
	if err != nil {
		return fmt.Errorf("query %s: %w", reqDiskList, err)
	}
	disks, ok := diskList(payload)
	if !ok {
		return fmt.Errorf("no disk list in response")
	}
	for _, ent := range disks {
		emitFlattened(c.dispatcher, c.logger, FamilyDisk, ent, EntityContext{})
	}
	return nil
}

// diskList finds the disk entity list in a disk inventory response,
// accepting "disk", "data" as a bare list, or "data.disk".
func diskList(payload map[string]any) ([]any, bool) {
	if disks, ok := listField(payload, "disk"); ok {
		return disks, true
	}
	data, ok := payload["data"]
	if !ok {
		return nil, false
	}
	switch v := data.(type) {
	case []any:
		return v, true
	case map[string]any:
		return listField(v, "disk")
	}
	return nil, false
}

// SMARTCollector queries SMART state per inventoried disk. The SMART
// payload never repeats the disk's own name, so the queried name is passed
// down as the entity identity. The pass/fail verdict is pre-mapped to a
// numeric sample because operators alert on it; everything else follows the
// normal dispatch rules.
type SMARTCollector struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewSMARTCollector(d *Dispatcher, logger *slog.Logger) *SMARTCollector {
	return &SMARTCollector{dispatcher: d, logger: logger.With(slog.String("collector", "smart"))}
}

func (c *SMARTCollector) Name() string { return "smart" }

func (c *SMARTCollector) Collect(ctx context.Context, s Session) error {
	payload, err := s.Request(ctx, reqDiskList, map[string]any{"no_hot_spare": true})
	if err != nil {
		return fmt.Errorf("query %s: %w", reqDiskList, err)
	}
	disks, ok := diskList(payload)
	if !ok {
		return fmt.Errorf("no disk list in response")
	}
	for _, ent := range disks {
		disk, ok := ent.(map[string]any)
		if !ok {
			continue
		}
		name, _ := disk["name"].(string)
		if name == "" {
			c.logger.Warn("skipping disk without a name in SMART collection")
			continue
		}
		if err := c.collectDisk(ctx, s, name); err != nil {
			c.logger.Warn("SMART collection failed for disk",
				slog.String("disk", name),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (c *SMARTCollector) collectDisk(ctx context.Context, s Session, disk string) error {
	payload, err := s.Request(ctx, reqDiskSMART, map[string]any{"disk": disk})
	if err != nil {
		return fmt.Errorf("query %s: %w", reqDiskSMART, err)
	}
	smart, ok := mapField(payload, "smart")
	if !ok {
		return fmt.Errorf("no smart data in response")
	}
	if status, ok := mapField(smart, "smart_status"); ok {
		if passed, ok := status["passed"].(bool); ok {
			mapped := make(map[string]any, len(status))
			for k, v := range status {
				mapped[k] = v
			}
			mapped["passed"] = boolToFloat64(passed)
			shallow := make(map[string]any, len(smart))
			for k, v := range smart {
				shallow[k] = v
			}
			shallow["smart_status"] = mapped
			smart = shallow
		}
	}
	// The subtree is re-rooted under "smart" so every key lands in the
	// fnos_disk_smart_* namespace instead of sharing fnos_disk_* with the
	// inventory and performance collectors.
	emitFlattened(c.dispatcher, c.logger, FamilyDisk, map[string]any{"smart": smart}, EntityContext{Name: disk})
	return nil
}

func boolToFloat64(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
