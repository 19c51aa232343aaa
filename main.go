package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/exporter-toolkit/web"

	"github.com/Timandes/fnos-prometheus-exporter/collector"
	"github.com/Timandes/fnos-prometheus-exporter/config"
	"github.com/Timandes/fnos-prometheus-exporter/fnos"
)

var (
	webConfig     = flag.String("web.config-file", "", "Path to web configuration file.")
	configFile    = flag.String("config.file", "config.yml", "Path to configuration file.")
	pprofEnabled  = flag.Bool("pprof.enabled", false, "Enable pprof handler at /debug/pprof")
	listenAddress = flag.String(
		"web.listen-address",
		":9123",
		"Address to listen on for web interface and telemetry.",
	)
	sc = &config.SafeConfig{
		Config: &config.Config{},
	}
	logLevel = new(slog.LevelVar)
	reloadCh chan chan error
)

// applyLogLevel pushes the configured level into the live handler, so a
// reload takes effect without restarting.
func applyLogLevel() {
	logLevel.Set(parseLogLevel(sc.AppLogLevel()))
}

func reloadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" || r.Method == "PUT" {
			slog.Info("Triggered configuration reload from /-/reload HTTP endpoint")
			err := sc.ReloadConfig(*configFile)
			if err != nil {
				slog.Error("failed to reload config file", slog.Any("error", err))
				http.Error(w, "failed to reload config file", http.StatusInternalServerError)
				return
			}
			applyLogLevel()
			slog.Info("config file reloaded", slog.String("operation", "sc.ReloadConfig"))

			w.WriteHeader(http.StatusOK)
			_, err = io.WriteString(w, "Configuration reloaded successfully!")
			if err != nil {
				slog.Warn("failed to send configuration reload status message")
			}
		} else {
			http.Error(w, "Only PUT and POST methods are allowed", http.StatusBadRequest)
		}
	}
}

// fnosDialer adapts the websocket client to the collector's Dialer
// interface, folding login into the dial. Host and credentials are read
// from the live config at dial time, so a reload applies on the next
// reconnect.
type fnosDialer struct {
	sc     *config.SafeConfig
	logger *slog.Logger
}

func (d fnosDialer) Dial(ctx context.Context) (collector.Session, error) {
	cfg := d.sc.Snapshot()
	client, err := fnos.Dial(ctx, cfg.Host, d.logger)
	if err != nil {
		return nil, err
	}
	if err := client.Login(ctx, cfg.Username, cfg.Password); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Parse the log level from input
func parseLogLevel(level string) slog.Level {
	ret := slog.LevelInfo
	switch level {
	case "debug":
		ret = slog.LevelDebug
	case "info":
		ret = slog.LevelInfo
	case "warn":
		ret = slog.LevelWarn
	case "error":
		ret = slog.LevelError
	default:
		slog.Warn("Invalid loglevel provided. Fallback to default")
	}

	return ret
}

func main() {
	slog.Info("Starting fnos-prometheus-exporter")
	flag.Parse()

	// load config first time
	if err := sc.ReloadConfig(*configFile); err != nil {
		slog.Error("Error parsing config file", slog.Any("error", err))
		os.Exit(1)
	}

	// Setup final logger from config
	applyLogLevel()
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	slog.Info("Config successfully parsed", slog.String("loglevel", logLevel.Level().String()))

	// load config in background to watch for config changes
	hup := make(chan os.Signal, 1)
	reloadCh = make(chan chan error)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-hup:
				if err := sc.ReloadConfig(*configFile); err != nil {
					slog.Error("failed to reload config file", slog.Any("error", err))
					break
				}
				applyLogLevel()
				slog.Info("config file reloaded", slog.String("operation", "sc.ReloadConfig"))
			case rc := <-reloadCh:
				if err := sc.ReloadConfig(*configFile); err != nil {
					slog.Error("failed to reload config file", slog.Any("error", err))
					rc <- err
					break
				}
				applyLogLevel()
				slog.Info("config file reloaded", slog.String("operation", "sc.ReloadConfig"))
				rc <- nil
			}
		}
	}()

	cfg := sc.Snapshot()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	catalog := collector.NewCatalog(registry, logger)

	dialer := fnosDialer{sc: sc, logger: logger}
	// Interval, the collector set, and custom queries are fixed until
	// restart; loglevel, credentials, host, and query_timeout follow
	// reloads.
	exporter, err := collector.NewExporter(dialer, catalog, cfg, logger)
	if err != nil {
		slog.Error("Error building exporter", slog.Any("error", err))
		os.Exit(1)
	}
	defer exporter.Close()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		slog.Error("Error creating scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Duration(cfg.Interval)),
		gocron.NewTask(func() {
			exporter.SetQueryTimeout(time.Duration(sc.Snapshot().QueryTimeout))
			result := exporter.RunCycle(context.Background())
			if !result.OK() {
				slog.Warn("collection cycle completed with failures",
					slog.Any("collected", result.Collected),
					slog.Any("failed", result.Failed),
				)
				return
			}
			slog.Debug("collection cycle completed", slog.Any("collected", result.Collected))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		slog.Error("Error scheduling collection cycle", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(catalog.Registry(), promhttp.HandlerOpts{}))
	mux.Handle("/-/reload", reloadHandler()) // HTTP endpoint for triggering configuration reload

	if *pprofEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		mux.Handle("/debug/pprof/heap", pprof.Handler("heap"))
		mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		mux.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
		mux.Handle("/debug/pprof/block", pprof.Handler("block"))
		mux.Handle("/debug/pprof/mutex", pprof.Handler("mutex"))
		mux.Handle("/debug/pprof/allocs", pprof.Handler("allocs"))

		slog.Info("pprof endpoints enabled", slog.Any("endpoint", "/debug/pprof/"))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// nolint
		w.Write([]byte(`<html>
            <head>
            <title>fnOS Exporter</title>
            </head>
            <body>
            <h1>fnOS Exporter</h1>
            <p><a href="/metrics">Metrics</a></p>
            </body>
            </html>`))
	})

	exporterToolkitConf := web.FlagConfig{
		WebListenAddresses: &([]string{*listenAddress}),
		WebConfigFile:      webConfig,
	}
	slog.Info("Exporter started", slog.String("listenAddress", *listenAddress))
	srv := &http.Server{
		Handler: mux,
	}
	err = web.ListenAndServe(srv, &exporterToolkitConf, logger)
	if err != nil {
		log.Fatal(err)
	}
}
