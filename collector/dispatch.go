package collector

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Dispatcher routes one resolved leaf value into the catalog: numerics
// become gauge samples, known numeric lists expand into sibling series, and
// everything else becomes an info record. A failure on any single value is
// logged and skipped; dispatch never aborts the remaining values of a
// payload.
type Dispatcher struct {
	catalog *Catalog
	logger  *slog.Logger
}

func NewDispatcher(catalog *Catalog, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		catalog: catalog,
		logger:  logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch publishes value under the resolved identity. key is the
// flattened key the identity was resolved from; it selects list-expansion
// behavior and names the info field for textual values.
func (d *Dispatcher) Dispatch(id Identity, key string, value any) {
	if f, ok := asFloat(value); ok {
		d.setGauge(id, f)
		return
	}
	if list, ok := value.([]any); ok {
		d.dispatchList(id, key, list)
		return
	}
	d.setInfo(id, key, value)
}

// dispatchList expands a numeric list on a known multi-value field into one
// sibling series per element, discriminated by a "core" label. A numeric
// list on any other field has no defined expansion rule and is skipped, as
// is a list holding non-numeric elements.
func (d *Dispatcher) dispatchList(id Identity, key string, list []any) {
	values, numeric := floatSlice(list)
	if !numeric || !expandsPerElement(id.Family, key) {
		d.logger.Warn("no expansion rule for list-valued field, skipping",
			slog.String("metric", id.Name),
			slog.String("key", key),
		)
		return
	}
	for i, f := range values {
		sibling := id
		sibling.LabelKeys = append(append([]string(nil), id.LabelKeys...), "core")
		sibling.LabelValues = append(append([]string(nil), id.LabelValues...), strconv.Itoa(i))
		sibling.LookupKey = fmt.Sprintf("%s|core|%d", id.LookupKey, i)
		d.setGauge(sibling, f)
	}
}

// expandsPerElement reports whether a flattened key is a known multi-value
// field. Per-core temperature arrays on CPUs are the one documented case.
func expandsPerElement(family Family, key string) bool {
	return family == FamilyCPU && strings.Contains(strings.ToLower(key), "temp")
}

func (d *Dispatcher) setGauge(id Identity, value float64) {
	gv, err := d.catalog.GetOrCreateGauge(id.LookupKey, id.Name, id.Help, id.LabelKeys)
	if err != nil {
		d.logger.Warn("failed to create gauge", slog.String("metric", id.Name), slog.Any("error", err))
		return
	}
	g, err := gv.GetMetricWithLabelValues(id.LabelValues...)
	if err != nil {
		d.logger.Warn("failed to set gauge", slog.String("metric", id.Name), slog.Any("error", err))
		return
	}
	g.Set(value)
}

func (d *Dispatcher) setInfo(id Identity, key string, value any) {
	err := d.catalog.SetInfo(id.Name, id.Help, id.LabelKeys, SnakeCase(key), id.LabelValues, stringify(value))
	if err != nil {
		d.logger.Warn("failed to set info record", slog.String("metric", id.Name), slog.Any("error", err))
	}
}

// asFloat reports whether a leaf value is numeric, converting it when so.
// Booleans are deliberately not numeric; they dispatch as textual records.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func floatSlice(list []any) ([]float64, bool) {
	out := make([]float64, 0, len(list))
	for _, v := range list {
		f, ok := asFloat(v)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

func stringify(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%v", v)
}
