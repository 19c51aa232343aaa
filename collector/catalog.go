package collector

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Catalog is the process-wide store of series handles created from appliance
// payloads. Handles are created on first use and live for the lifetime of
// the process; a metric that stops appearing in a payload simply keeps its
// last value. The catalog is safe for concurrent use: the collection cycle
// mutates it while the exposition handler gathers from the underlying
// registry.
type Catalog struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	mu       sync.Mutex
	gauges   map[string]*prometheus.GaugeVec
	infos    map[string]*prometheus.GaugeVec
	infoLast map[string]string
}

// NewCatalog builds a catalog over the given registry. The registry is
// injected rather than ambient; the HTTP layer gathers from the same one.
func NewCatalog(registry *prometheus.Registry, logger *slog.Logger) *Catalog {
	return &Catalog{
		registry: registry,
		logger:   logger.With(slog.String("component", "catalog")),
		gauges:   make(map[string]*prometheus.GaugeVec),
		infos:    make(map[string]*prometheus.GaugeVec),
		infoLast: make(map[string]string),
	}
}

// Registry exposes the underlying registry for the exposition handler.
func (c *Catalog) Registry() *prometheus.Registry {
	return c.registry
}

// Gather is a passthrough to the registry's serialization.
func (c *Catalog) Gather() ([]*dto.MetricFamily, error) {
	return c.registry.Gather()
}

// GetOrCreateGauge returns the gauge vector bound to lookupKey, creating and
// registering it on first use. Calling it again with the same lookupKey
// always returns the same handle. When registration is rejected because a
// collector of that exact name and label shape already exists (a different
// lookupKey legitimately canonicalized to the same exposed name), the
// existing handle is recovered and bound; a rejection that cannot be
// recovered (label-key mismatch) is returned as an error for the caller to
// log and skip.
func (c *Catalog) GetOrCreateGauge(lookupKey, name, help string, labelKeys []string) (*prometheus.GaugeVec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gv, ok := c.gauges[lookupKey]; ok {
		return gv, nil
	}
	gv, err := c.register(name, help, labelKeys)
	if err != nil {
		return nil, err
	}
	c.gauges[lookupKey] = gv
	return gv, nil
}

// GetOrCreateInfo returns the info vector for a canonical name. Unlike
// gauges, info records are keyed by name alone: all entities sharing a
// canonical name funnel into one record definition, disambiguated only by
// the label values written. The record is exposed as "<name>_info" with a
// constant sample of 1 and the field value carried as the trailing label,
// matching the Prometheus info-metric convention.
func (c *Catalog) GetOrCreateInfo(name, help string, labelKeys []string, fieldKey string) (*prometheus.GaugeVec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrCreateInfo(name, help, labelKeys, fieldKey)
}

func (c *Catalog) getOrCreateInfo(name, help string, labelKeys []string, fieldKey string) (*prometheus.GaugeVec, error) {
	if iv, ok := c.infos[name]; ok {
		return iv, nil
	}
	keys := make([]string, 0, len(labelKeys)+1)
	keys = append(keys, labelKeys...)
	keys = append(keys, fieldKey)
	iv, err := c.register(name+"_info", help, keys)
	if err != nil {
		return nil, err
	}
	c.infos[name] = iv
	return iv, nil
}

// SetInfo writes the current value of a textual record, replacing the value
// previously exposed for the same entity. The field value rides as a label
// on the underlying vec, so a changed value would otherwise leave the old
// child exposed alongside the new one; the last value per entity is tracked
// and its stale child deleted before the new one is set.
func (c *Catalog) SetInfo(name, help string, labelKeys []string, fieldKey string, labelValues []string, fieldValue string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	iv, err := c.getOrCreateInfo(name, help, labelKeys, fieldKey)
	if err != nil {
		return err
	}
	values := make([]string, 0, len(labelValues)+1)
	values = append(values, labelValues...)
	values = append(values, fieldValue)
	g, err := iv.GetMetricWithLabelValues(values...)
	if err != nil {
		return err
	}

	seriesKey := name
	for _, v := range labelValues {
		seriesKey += "|" + v
	}
	if prev, ok := c.infoLast[seriesKey]; ok && prev != fieldValue {
		stale := make([]string, 0, len(labelValues)+1)
		stale = append(stale, labelValues...)
		stale = append(stale, prev)
		iv.DeleteLabelValues(stale...)
	}
	c.infoLast[seriesKey] = fieldValue
	g.Set(1)
	return nil
}

// register attempts the actual registration, recovering an existing
// compatible collector as a normal branch rather than a failure.
func (c *Catalog) register(name, help string, labelKeys []string) (*prometheus.GaugeVec, error) {
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, labelKeys)

	err := c.registry.Register(gv)
	if err == nil {
		return gv, nil
	}
	are := prometheus.AlreadyRegisteredError{}
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("register %s: %w", name, err)
}
