package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/odfcore/internal/config"
	"github.com/Sumatoshi-tech/odfcore/internal/engine"
	"github.com/Sumatoshi-tech/odfcore/internal/fetch"
	"github.com/Sumatoshi-tech/odfcore/internal/ingest"
	"github.com/Sumatoshi-tech/odfcore/internal/pull"
	"github.com/Sumatoshi-tech/odfcore/internal/repository"
	"github.com/Sumatoshi-tech/odfcore/internal/transform"
	"github.com/Sumatoshi-tech/odfcore/pkg/observability"
	"github.com/Sumatoshi-tech/odfcore/pkg/version"
)

// verbosity holds the --verbose/--quiet persistent flags, set once by
// main.go before rootCmd.Execute runs. loadApp consults it when
// deriving the effective log level so the flags affect every
// subcommand without each one threading the bools through by hand.
var verbosity struct {
	verbose *bool
	quiet   *bool
}

// SetVerbosity wires the --verbose/--quiet flag variables bound on the
// root command into loadApp's log-level derivation.
func SetVerbosity(verbose, quiet *bool) {
	verbosity.verbose = verbose
	verbosity.quiet = quiet
}

// app bundles the services every subcommand needs, built once from the
// loaded config so each command doesn't re-derive its own wiring.
type app struct {
	fs        afero.Fs
	repo      *repository.Repository
	pull      *pull.Service
	layout    repository.WorkspaceLayout
	telemetry observability.Providers
}

// newApp constructs the service graph from cfg: a real-disk
// afero.Fs, a Repository rooted at cfg's workspace layout, an engine
// broker that spawns binaries out of cfg.Engine.BinDir, and a pull
// Service wired to ingest/transform Services sharing that broker.
func newApp(cfg *config.Config) (*app, error) {
	fs := afero.NewOsFs()

	layout := repository.WorkspaceLayout{
		DatasetsDir:    cfg.Workspace.DatasetsDir,
		DataDir:        cfg.Workspace.DataDir,
		CheckpointsDir: cfg.Workspace.CheckpointsDir,
		CacheDir:       cfg.Workspace.CacheDir,
	}

	telemetry, err := observability.Init(observabilityConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	slog.SetDefault(telemetry.Logger)

	repo := repository.New(fs, layout)

	broker := engine.NewBroker(processEngineFactory(cfg.Engine.BinDir))

	ingestSvc := ingest.NewService(fs, repo, broker, layout, fetch.New())
	transformSvc := transform.NewService(fs, repo, broker, layout)

	pullSvc := pull.NewService(repo, ingestSvc, transformSvc)

	pullMetrics, err := observability.NewPullMetrics(telemetry.Meter)
	if err != nil {
		return nil, fmt.Errorf("init pull metrics: %w", err)
	}

	broker.SetObservability(pullMetrics, telemetry.Tracer)
	ingestSvc.SetMetrics(pullMetrics)
	transformSvc.SetMetrics(pullMetrics)
	pullSvc.SetObservability(pullMetrics, telemetry.Tracer)

	return &app{fs: fs, repo: repo, pull: pullSvc, layout: layout, telemetry: telemetry}, nil
}

// observabilityConfig maps a loaded Config onto pkg/observability's
// Config shape, starting from DefaultConfig (no-op OTLP export, info
// JSON logs) and overriding what the workspace config sets explicitly.
func observabilityConfig(cfg *config.Config) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.ShutdownTimeoutSec = cfg.Observability.ShutdownTimeoutMS / 1000
	obsCfg.LogJSON = cfg.Logging.Format == "json"

	if level, err := parseLogLevel(cfg.Logging.Level); err == nil {
		obsCfg.LogLevel = level
	}

	switch {
	case verbosity.quiet != nil && *verbosity.quiet:
		obsCfg.LogLevel = slog.LevelError
	case verbosity.verbose != nil && *verbosity.verbose:
		obsCfg.LogLevel = slog.LevelDebug
	}

	return obsCfg
}

func parseLogLevel(level string) (slog.Level, error) {
	var l slog.Level

	err := l.UnmarshalText([]byte(level))

	return l, err
}

// processEngineFactory resolves an engine name to a binary under
// binDir (e.g. binDir/spark) and wraps it as a engine.ProcessEngine —
// the "ingest" engine built into odfcore uses the same binDir/ingest
// convention as any named transform engine.
func processEngineFactory(binDir string) engine.Factory {
	return func(name string) (engine.Engine, error) {
		path := filepath.Join(binDir, name)

		return engine.NewProcessEngine(name, func(ctx context.Context) *exec.Cmd {
			return exec.CommandContext(ctx, path)
		}), nil
	}
}

// loadApp loads config from configPath and builds an app, wrapping
// config errors with a consistent CLI-facing prefix. Callers must
// invoke the returned shutdown func before the process exits to flush
// pending telemetry.
func loadApp(configPath string) (a *app, shutdown func(), err error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	a, err = newApp(cfg)
	if err != nil {
		return nil, nil, err
	}

	shutdown = func() {
		if shutdownErr := a.telemetry.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("observability shutdown failed", "error", shutdownErr)
		}
	}

	return a, shutdown, nil
}
