package observability

import "log/slog"

// AppMode tags which surface emitted the telemetry, attached to every log
// record and the OTel resource (app.mode).
type AppMode string

const (
	// ModeCLI is the interactive `odfcore` command-line invocation.
	ModeCLI AppMode = "cli"
	// ModeDaemon is a long-running scheduled-pull process (the wave
	// planner run on a timer instead of once per invocation).
	ModeDaemon AppMode = "daemon"
)

// defaultShutdownTimeoutSec bounds how long Providers.Shutdown waits for
// pending spans/metrics to flush before giving up.
const defaultShutdownTimeoutSec = 5

// defaultServiceName is the resource service.name reported when the caller
// does not override it.
const defaultServiceName = "odfcore"

// Config controls Init's tracer/meter/logger construction. The zero value
// is not directly usable; use DefaultConfig and override individual fields.
type Config struct {
	// ServiceName is the OTel resource service.name.
	ServiceName string
	// ServiceVersion is the OTel resource service.version, omitted when empty.
	ServiceVersion string
	// Environment is the OTel resource deployment.environment, omitted when empty.
	Environment string
	// Mode tags the telemetry with which surface produced it.
	Mode AppMode

	// OTLPEndpoint is the OTLP/gRPC collector address. Empty selects no-op
	// tracer/meter providers (the CLI's default — no collector to talk to).
	OTLPEndpoint string
	// OTLPInsecure disables TLS on the OTLP connection.
	OTLPInsecure bool
	// OTLPHeaders are extra gRPC metadata headers sent with every OTLP export.
	OTLPHeaders map[string]string

	// SampleRatio sets a TraceIDRatioBased sampler when > 0 and
	// OTEL_TRACES_SAMPLER is unset. DebugTrace overrides both.
	SampleRatio float64
	// DebugTrace forces AlwaysSample and makes the attribute filter log
	// each attribute it strips as a warning on stderr.
	DebugTrace bool
	// TraceVerbose disables the PII/high-cardinality attribute filter even
	// without DebugTrace.
	TraceVerbose bool

	// LogLevel is the minimum slog level emitted.
	LogLevel slog.Level
	// LogJSON selects the JSON handler over the text handler.
	LogJSON bool

	// ShutdownTimeoutSec bounds Providers.Shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns the configuration a bare `odfcore` CLI invocation
// uses absent any explicit observability flags: no OTLP export, info-level
// JSON logs to stderr.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		Mode:               ModeCLI,
		LogLevel:           slog.LevelInfo,
		LogJSON:            true,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
