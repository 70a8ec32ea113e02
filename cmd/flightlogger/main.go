package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"flightlogger/internal/api"
	"flightlogger/pkg/airport"
	"flightlogger/pkg/config"
	"flightlogger/pkg/db"
	"flightlogger/pkg/flight"
	"flightlogger/pkg/logging"
	"flightlogger/pkg/probe"
	"flightlogger/pkg/report"
	"flightlogger/pkg/request"
	"flightlogger/pkg/session"
	"flightlogger/pkg/store"
	"flightlogger/pkg/tracker"
	"flightlogger/pkg/version"
)

// deliveryGrace bounds how long shutdown waits for a report still in flight.
const deliveryGrace = 2 * time.Minute

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", config.DefaultPath, "Path to the config file")
	pilotFlag  = flag.String("pilot", "", "Pilot callsign (overrides pilot.callsign)")
	acftFlag   = flag.String("aircraft", "", "Aircraft type (overrides pilot.aircraft)")
	resumeFlag = flag.String("resume", resumeAsk, "Resume an interrupted flight: ask, always or never")
)

// options carries everything run needs from the command line.
type options struct {
	ConfigPath string
	Pilot      string
	Aircraft   string
	Resume     string
	Stdin      io.Reader
	Stdout     io.Writer
}

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		ConfigPath: *configPath,
		Pilot:      *pilotFlag,
		Aircraft:   *acftFlag,
		Resume:     *resumeFlag,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
	}
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !validResume(opts.Resume) {
		return fmt.Errorf("invalid --resume value %q", opts.Resume)
	}

	appCfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("FlightLogger Started", "version", version.Version, "provider", appCfg.Sim.Provider)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	tr := tracker.New()
	reqClient := request.New(request.Options{
		Timeout:     time.Duration(appCfg.Request.Timeout),
		MaxAttempts: appCfg.Request.Retries + 1,
		BaseDelay:   time.Duration(appCfg.Request.Backoff.BaseDelay),
		MaxDelay:    time.Duration(appCfg.Request.Backoff.MaxDelay),
		Tracker:     tr,
	})

	idx := airport.NewIndex(float64(appCfg.Airports.Geofence))
	loader := airport.NewLoader(reqClient, st, time.Duration(appCfg.Airports.CacheTTL))
	loader.SetTracker(tr)
	loader.LoadInto(ctx, idx, appCfg.Airports.Source)

	results := probe.Run(ctx, []probe.Probe{
		probe.Database(st),
		probe.Airports(idx),
	})
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	src, err := initSource(appCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry source: %w", err)
	}
	defer src.Close()

	prompt := newPrompter(ctx, opts.Stdin, opts.Stdout)
	sessions := session.NewStore(st, time.Duration(appCfg.Engine.ResumeMaxAge))

	eng := flight.New(flight.Options{
		Source:     src,
		Airports:   idx,
		Sessions:   sessions,
		Sink:       initSinks(appCfg, reqClient),
		Manual:     prompt.airport,
		Thresholds: thresholds(&appCfg.Engine),
		Interval:   time.Duration(appCfg.Ticker.TelemetryLoop),
	})

	if err := eng.Start(pick(opts.Pilot, appCfg.Pilot.Callsign), pick(opts.Aircraft, appCfg.Pilot.Aircraft)); err != nil {
		return err
	}
	offerResume(ctx, eng, sessions, prompt, opts.Resume)

	handlers := &api.Handlers{
		Session:   api.NewSessionHandler(eng),
		Telemetry: api.NewTelemetryHandler(eng, nil),
		Stats:     tr,
		Shutdown:  cancel,
	}
	if src.bridge != nil {
		handlers.Telemetry = api.NewTelemetryHandler(eng, src.bridge)
		handlers.Bridge = src.bridge
	}
	srv := api.NewServer(appCfg.Server.Address, handlers)

	return runLifecycle(ctx, eng, srv)
}

func initDB(appCfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	// Entries a few TTLs old are no longer useful even as an offline fallback.
	if ttl := time.Duration(appCfg.Airports.CacheTTL); ttl > 0 {
		if err := dbConn.PruneCache(4 * ttl); err != nil {
			slog.Warn("Failed to prune cache", "error", err)
		}
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func initSinks(cfg *config.Config, client *request.Client) flight.Sink {
	sinks := report.Multi{report.NewLog(slog.Default())}
	if cfg.Report.DiscordWebhook != "" {
		sinks = append(sinks, report.NewDiscord(client, cfg.Report.DiscordWebhook))
		slog.Info("Discord reporting enabled")
	} else {
		slog.Info("Discord reporting disabled", "hint", "set report.discord_webhook or "+config.WebhookEnv)
	}
	return sinks
}

func thresholds(c *config.EngineConfig) flight.Thresholds {
	return flight.Thresholds{
		TakeoffAGL:      c.TakeoffAGLFt,
		LandingDebounce: time.Duration(c.LandingDebounce),
		Butter:          c.ButterThresholdFPM,
		Crash:           c.CrashThresholdFPM,
	}
}

func pick(flagVal, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return cfgVal
}

// runLifecycle runs the engine and the HTTP server until the flight is
// reported, the server fails, or ctx is cancelled.
func runLifecycle(ctx context.Context, eng *flight.Engine, srv *http.Server) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	var runErr error
	select {
	case err := <-engineDone:
		if err == nil {
			slog.Info("Flight complete, shutting down")
		}
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	waitDeliveries(eng, deliveryGrace)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func waitDeliveries(eng *flight.Engine, grace time.Duration) {
	done := make(chan struct{})
	go func() {
		eng.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		slog.Warn("Gave up waiting for report delivery", "after", grace)
	}
}
