package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// SystemCollector publishes appliance-level records (uptime, host name)
// under the bare "fnos_" prefix, with no entity labels. Each query fails
// independently; one broken query does not suppress the other.
type SystemCollector struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewSystemCollector(d *Dispatcher, logger *slog.Logger) *SystemCollector {
	return &SystemCollector{dispatcher: d, logger: logger.With(slog.String("collector", "system"))}
}

func (c *SystemCollector) Name() string { return "system" }

func (c *SystemCollector) Collect(ctx context.Context, s Session) error {
	var errs []error
	for _, req := range []string{reqSysUptime, reqSysHostname} {
		if err := c.collectOne(ctx, s, req); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *SystemCollector) collectOne(ctx context.Context, s Session, req string) error {
	payload, err := s.Request(ctx, req, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", req, err)
	}
	data, ok := mapField(payload, "data")
	if !ok {
		return fmt.Errorf("no data in %s response", req)
	}
	emitFlattened(c.dispatcher, c.logger, FamilyNone, data, EntityContext{})
	return nil
}
