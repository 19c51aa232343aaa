package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// NetworkCollector publishes interface metrics from two views: the network
// manager's interface list (configuration, link state) and the resource
// monitor's counters. Both label series with the interface name.
type NetworkCollector struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewNetworkCollector(d *Dispatcher, logger *slog.Logger) *NetworkCollector {
	return &NetworkCollector{dispatcher: d, logger: logger.With(slog.String("collector", "network"))}
}

func (c *NetworkCollector) Name() string { return "network" }

func (c *NetworkCollector) Collect(ctx context.Context, s Session) error {
	var errs []error
	if err := c.collectInterfaceList(ctx, s); err != nil {
		errs = append(errs, fmt.Errorf("interface list: %w", err))
	}
	if err := c.collectCounters(ctx, s); err != nil {
		errs = append(errs, fmt.Errorf("interface counters: %w", err))
	}
	return errors.Join(errs...)
}

func (c *NetworkCollector) collectInterfaceList(ctx context.Context, s Session) error {
	payload, err := s.Request(ctx, reqNetList, map[string]any{"type": 0})
	if err != nil {
		return fmt.Errorf("query %s: %w", reqNetList, err)
	}
	data, ok := mapField(payload, "data")
	if !ok {
		return fmt.Errorf("no data in network list response")
	}
	net, ok := mapField(data, "net")
	if !ok {
		return fmt.Errorf("no net field in network list response")
	}
	c.emitInterfaces(net)
	return nil
}

func (c *NetworkCollector) collectCounters(ctx context.Context, s Session) error {
	payload, err := s.Request(ctx, reqResmonNet, nil)
	if err != nil {
		return fmt.Errorf("query %s: %w", reqResmonNet, err)
	}
	data, ok := mapField(payload, "data")
	if !ok {
		return fmt.Errorf("no data in network counters response")
	}
	c.emitInterfaces(data)
	return nil
}

func (c *NetworkCollector) emitInterfaces(tree map[string]any) {
	ifs, ok := listField(tree, "ifs")
	if !ok {
		return
	}
	for _, ent := range ifs {
		emitFlattened(c.dispatcher, c.logger, FamilyNetwork, ent, EntityContext{})
	}
}
