package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// CPUCollector publishes per-processor samples from the resource monitor.
// The appliance reports either a single CPU map or a list of them; per-core
// temperature arrays are expanded by the dispatcher.
type CPUCollector struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewCPUCollector(d *Dispatcher, logger *slog.Logger) *CPUCollector {
	return &CPUCollector{dispatcher: d, logger: logger.With(slog.String("collector", "cpu"))}
}

func (c *CPUCollector) Name() string { return "cpu" }

func (c *CPUCollector) Collect(ctx context.Context, s Session) error {
	payload, err := s.Request(ctx, reqResmonCPU, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", reqResmonCPU, err)
	}
	data, ok := payloadData(payload)
	if !ok {
		return fmt.Errorf("no data in cpu response")
	}
	switch v := data.(type) {
	case []any:
		for i, ent := range v {
			emitFlattened(c.dispatcher, c.logger, FamilyCPU, ent, EntityContext{Index: strconv.Itoa(i)})
		}
	default:
		emitFlattened(c.dispatcher, c.logger, FamilyCPU, v, EntityContext{})
	}
	return nil
}

// GPUCollector publishes per-device samples. The payload nests the device
// list under data.gpu and carries the device count alongside it.
type GPUCollector struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewGPUCollector(d *Dispatcher, logger *slog.Logger) *GPUCollector {
	return &GPUCollector{dispatcher: d, logger: logger.With(slog.String("collector", "gpu"))}
}

func (g *GPUCollector) Name() string { return "gpu" }

func (g *GPUCollector) Collect(ctx context.Context, s Session) error {
	payload, err := s.Request(ctx, reqResmonGPU, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", reqResmonGPU, err)
	}
	data, ok := payloadData(payload)
	if !ok {
		return fmt.Errorf("no data in gpu response")
	}
	tree, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected gpu data shape %T", data)
	}
	if gpus, ok := listField(tree, "gpu"); ok {
		for i, ent := range gpus {
			emitFlattened(g.dispatcher, g.logger, FamilyGPU, ent, EntityContext{Index: strconv.Itoa(i)})
		}
	}
	// Device count is an appliance-level sample, published without an
	// entity label.
	if num, ok := asFloat(tree["num"]); ok {
		id := Resolve(FamilyGPU, "num", EntityContext{})
		g.dispatcher.setGauge(id, num)
	}
	return nil
}

// MemoryCollector flattens the nested {mem: {...}, swap: {...}} structure
// into unlabeled appliance-level samples.
type MemoryCollector struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewMemoryCollector(d *Dispatcher, logger *slog.Logger) *MemoryCollector {
	return &MemoryCollector{dispatcher: d, logger: logger.With(slog.String("collector", "memory"))}
}

func (m *MemoryCollector) Name() string { return "memory" }

func (m *MemoryCollector) Collect(ctx context.Context, s Session) error {
	payload, err := s.Request(ctx, reqResmonMemory, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", reqResmonMemory, err)
	}
	data, ok := payloadData(payload)
	if !ok {
		return fmt.Errorf("no data in memory response")
	}
	emitFlattened(m.dispatcher, m.logger, FamilyMemory, data, EntityContext{})
	return nil
}

// DiskPerfCollector publishes per-device performance counters from the
// resource monitor's disk view. Inventory comes from DiskCollector; both
// share the disk family namespace.
type DiskPerfCollector struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewDiskPerfCollector(d *Dispatcher, logger *slog.Logger) *DiskPerfCollector {
	return &DiskPerfCollector{dispatcher: d, logger: logger.With(slog.String("collector", "diskperf"))}
}

func (c *DiskPerfCollector) Name() string { return "diskperf" }

func (c *DiskPerfCollector) Collect(ctx context.Context, s Session) error {
	payload, err := s.Request(ctx, reqResmonDisk, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", reqResmonDisk, err)
	}
	data, ok := payloadData(payload)
	if !ok {
		return fmt.Errorf("no data in disk performance response")
	}
	tree, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected disk performance data shape %T", data)
	}
	disks, ok := listField(tree, "disk")
	if !ok {
		return fmt.Errorf("no disk list in disk performance response")
	}
	for _, ent := range disks {
		emitFlattened(c.dispatcher, c.logger, FamilyDisk, ent, EntityContext{})
	}
	return nil
}
