package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Timandes/fnos-prometheus-exporter/config"
)

// Query names understood by the appliance.
const (
	reqSysUptime    = "appcgi.sysinfo.uptime"
	reqSysHostname  = "appcgi.sysinfo.hostname"
	reqResmonCPU    = "appcgi.resmon.cpu"
	reqResmonGPU    = "appcgi.resmon.gpu"
	reqResmonMemory = "appcgi.resmon.memory"
	reqResmonDisk   = "appcgi.resmon.disk"
	reqResmonNet    = "appcgi.resmon.net"
	reqStoreGeneral = "appcgi.store.general"
	reqDiskList     = "appcgi.store.disk.list"
	reqDiskSMART    = "appcgi.store.disk.smart"
	reqNetList      = "appcgi.net.list"
)

// FamilyCollector extracts one resource family's metrics from the appliance
// and publishes them through the dispatcher. Implementations must contain
// their own failures: a malformed payload skips that payload, never the
// cycle.
type FamilyCollector interface {
	Name() string
	Collect(ctx context.Context, s Session) error
}

// CycleResult reports the outcome of one collection cycle to the scheduler.
type CycleResult struct {
	Collected []string
	Failed    []string
}

// OK reports whether every enabled family collected cleanly.
func (r CycleResult) OK() bool {
	return len(r.Failed) == 0
}

// Exporter drives the collection cycle: it keeps one authenticated session
// to the appliance, redialing when the session dies, and runs every enabled
// family collector sequentially against it.
type Exporter struct {
	logger       *slog.Logger
	dialer       Dialer
	queryTimeout time.Duration
	collectors   []FamilyCollector

	mu      sync.Mutex
	session Session
}

// NewExporter builds the exporter from configuration. The family collector
// set is an enumerated table; unknown collector names are a configuration
// error.
func NewExporter(dialer Dialer, catalog *Catalog, cfg config.Config, logger *slog.Logger) (*Exporter, error) {
	dispatcher := NewDispatcher(catalog, logger)

	table := []FamilyCollector{
		NewSystemCollector(dispatcher, logger),
		NewCPUCollector(dispatcher, logger),
		NewGPUCollector(dispatcher, logger),
		NewMemoryCollector(dispatcher, logger),
		NewDiskPerfCollector(dispatcher, logger),
		NewDiskCollector(dispatcher, logger),
		NewSMARTCollector(dispatcher, logger),
		NewStoreCollector(dispatcher, logger),
		NewNetworkCollector(dispatcher, logger),
	}

	collectors, err := selectCollectors(table, cfg.Collectors)
	if err != nil {
		return nil, err
	}
	for _, q := range cfg.CustomQueries {
		cq, err := NewCustomQueryCollector(q, catalog, logger)
		if err != nil {
			return nil, fmt.Errorf("custom query %q: %w", q.Name, err)
		}
		collectors = append(collectors, cq)
	}

	return &Exporter{
		logger:       logger.With(slog.String("component", "exporter")),
		dialer:       dialer,
		queryTimeout: time.Duration(cfg.QueryTimeout),
		collectors:   collectors,
	}, nil
}

// selectCollectors filters the static table by the configured names. An
// empty list enables every family.
func selectCollectors(table []FamilyCollector, names []string) ([]FamilyCollector, error) {
	if len(names) == 0 {
		return table, nil
	}
	byName := make(map[string]FamilyCollector, len(table))
	for _, fc := range table {
		byName[fc.Name()] = fc
	}
	var out []FamilyCollector
	for _, name := range names {
		fc, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown collector %q", name)
		}
		out = append(out, fc)
	}
	return out, nil
}

// RunCycle performs one full collection cycle. It never returns an error:
// every failure is absorbed into the result so the scheduler can log it and
// carry on. A dead or missing session is redialed first; a family whose
// query fails is skipped for the cycle, leaving its previously published
// samples at their last value.
func (e *Exporter) RunCycle(ctx context.Context) CycleResult {
	var result CycleResult

	session, err := e.ensureSession(ctx)
	if err != nil {
		e.logger.Error("unable to establish appliance session", slog.Any("error", err))
		for _, fc := range e.collectors {
			result.Failed = append(result.Failed, fc.Name())
		}
		return result
	}

	e.mu.Lock()
	timeout := e.queryTimeout
	e.mu.Unlock()
	scoped := timeoutSession{Session: session, timeout: timeout}
	for _, fc := range e.collectors {
		if ctx.Err() != nil {
			e.logger.Warn("cycle context done, skipping remaining collectors", slog.Any("error", ctx.Err()))
			result.Failed = append(result.Failed, fc.Name())
			continue
		}
		if err := fc.Collect(ctx, scoped); err != nil {
			e.logger.Error("family collection failed",
				slog.String("family", fc.Name()),
				slog.Any("error", err),
			)
			result.Failed = append(result.Failed, fc.Name())
			continue
		}
		result.Collected = append(result.Collected, fc.Name())
	}

	// A session that died mid-cycle is dropped so the next cycle redials.
	if !session.Alive() {
		e.dropSession(session)
	}
	return result
}

// SetQueryTimeout updates the per-query deadline applied from the next
// cycle onward. The scheduler calls it with the live config value so a
// reload takes effect without a restart.
func (e *Exporter) SetQueryTimeout(d time.Duration) {
	e.mu.Lock()
	e.queryTimeout = d
	e.mu.Unlock()
}

// Close tears down the current session, if any.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	return err
}

func (e *Exporter) ensureSession(ctx context.Context) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil && e.session.Alive() {
		return e.session, nil
	}
	if e.session != nil {
		e.logger.Info("appliance session lost, reconnecting")
		_ = e.session.Close()
		e.session = nil
	}
	session, err := e.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	e.session = session
	return session, nil
}

func (e *Exporter) dropSession(s Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == s {
		_ = e.session.Close()
		e.session = nil
	}
}

// emitFlattened flattens one entity payload and dispatches every leaf
// through the resolver. When the context carries no identity yet, the
// entity's own identity field is used.
func emitFlattened(d *Dispatcher, logger *slog.Logger, family Family, ent any, ctx EntityContext) {
	rec, err := Flatten(ent, "")
	if err != nil {
		logger.Warn("skipping malformed entity",
			slog.String("family", string(family)),
			slog.String("entity_type", ctx.Type),
			slog.Any("error", err),
		)
		return
	}
	if ctx.Name == "" {
		if name, ok := EntityName(family, rec); ok {
			ctx.Name = name
		}
	}
	for key, value := range rec {
		d.Dispatch(Resolve(family, key, ctx), key, value)
	}
}
