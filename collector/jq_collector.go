package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/Timandes/fnos-prometheus-exporter/config"
)

// YieldedMetric is a metric-like struct built from applying a JQ filter to a
// raw appliance payload.
type YieldedMetric struct {
	Name   string
	Help   string
	Value  float64
	Labels map[string]string
}

// CustomQueryCollector issues a user-configured appliance query, applies a
// JQ filter to the raw payload, and publishes whatever metrics the filter
// yields. It covers fields the built-in family collectors have no policy
// for, without a code change.
type CustomQueryCollector struct {
	name    string
	req     string
	jqQuery *gojq.Query
	catalog *Catalog
	logger  *slog.Logger
}

// NewCustomQueryCollector parses the configured filter up front so a broken
// expression fails at startup, not mid-cycle.
func NewCustomQueryCollector(cfg config.CustomQuery, catalog *Catalog, logger *slog.Logger) (*CustomQueryCollector, error) {
	query, err := gojq.Parse(cfg.JQ)
	if err != nil {
		return nil, fmt.Errorf("jq parse error: %w", err)
	}
	return &CustomQueryCollector{
		name:    cfg.Name,
		req:     cfg.Req,
		jqQuery: query,
		catalog: catalog,
		logger:  logger.With(slog.String("collector", "custom"), slog.String("query", cfg.Name)),
	}, nil
}

func (c *CustomQueryCollector) Name() string { return "custom:" + c.name }

func (c *CustomQueryCollector) Collect(ctx context.Context, s Session) error {
	payload, err := s.Request(ctx, c.req, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", c.req, err)
	}
	metrics, err := metricsFromPayload(ctx, c.jqQuery, payload)
	if err != nil {
		return fmt.Errorf("apply jq filter: %w", err)
	}
	for _, metric := range metrics {
		c.publish(metric)
	}
	return nil
}

func (c *CustomQueryCollector) publish(metric YieldedMetric) {
	keys := slices.Sorted(maps.Keys(metric.Labels))
	lookupKey := metric.Name + "|" + strings.Join(keys, ",")
	gv, err := c.catalog.GetOrCreateGauge(lookupKey, metric.Name, metric.Help, keys)
	if err != nil {
		c.logger.Warn("failed to create custom gauge", slog.String("metric", metric.Name), slog.Any("error", err))
		return
	}
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, metric.Labels[k])
	}
	g, err := gv.GetMetricWithLabelValues(values...)
	if err != nil {
		c.logger.Warn("failed to set custom gauge", slog.String("metric", metric.Name), slog.Any("error", err))
		return
	}
	g.Set(metric.Value)
}

// metricsFromPayload applies the given gojq.Query to a decoded appliance
// payload. The filter is expected to yield a list of objects carrying name,
// value, help, and optionally labels; items that do not are skipped, with
// their errors joined together and returned as a bundle.
func metricsFromPayload(ctx context.Context, query *gojq.Query, payload map[string]any) ([]YieldedMetric, error) {
	var yielded []YieldedMetric
	var parseErrors []error

	iter := query.RunWithContext(ctx, payload)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, err
		}
		container, ok := v.([]any)
		if !ok {
			continue
		}
		for _, item := range container {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			metric, err := convertToMetric(obj)
			if err != nil {
				parseErrors = append(parseErrors, err)
				continue
			}
			yielded = append(yielded, metric)
		}
	}
	return yielded, errors.Join(parseErrors...)
}

// convertToMetric type-asserts one JQ-yielded object into a YieldedMetric.
func convertToMetric(item map[string]any) (YieldedMetric, error) {
	ret := YieldedMetric{
		Labels: map[string]string{},
	}
	var convertErrors []error
	keys := slices.Sorted(maps.Keys(item))

	if iName, ok := item["name"]; ok {
		if strName, ok := iName.(string); ok {
			ret.Name = strName
		} else {
			convertErrors = append(convertErrors, fmt.Errorf("item contained a non-string name"))
		}
	} else {
		convertErrors = append(convertErrors, fmt.Errorf("item missing name, provided keys: %s", keys))
	}

	if iVal, ok := item["value"]; ok {
		if floatVal, ok := asFloat(iVal); ok {
			ret.Value = floatVal
		} else {
			convertErrors = append(convertErrors, fmt.Errorf("item contained a non-numeric value"))
		}
	} else {
		convertErrors = append(convertErrors, fmt.Errorf("item missing value, provided keys: %s", keys))
	}

	if iHelp, ok := item["help"]; ok {
		if strHelp, ok := iHelp.(string); ok {
			ret.Help = strHelp
		} else {
			convertErrors = append(convertErrors, fmt.Errorf("item contained a non-string help"))
		}
	} else {
		convertErrors = append(convertErrors, fmt.Errorf("item missing help, provided keys: %s", keys))
	}

	if iLabels, ok := item["labels"]; ok {
		if mapLabels, ok := iLabels.(map[string]any); ok {
			for lName, lVal := range mapLabels {
				if valStr, ok := lVal.(string); ok {
					ret.Labels[lName] = valStr
				}
			}
		}
	}

	return ret, errors.Join(convertErrors...)
}
