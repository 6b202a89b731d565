// Package config loads instrumentation configuration from environment
// variables and the optional scope-config JSON file.
package config

import (
	"os"
	"strings"
	"time"
)

// Config holds all instrumentation configuration.
type Config struct {
	// WorkflowName is the service name stamped on the trace resource and
	// used as the workflow entity name on root spans.
	WorkflowName string

	// Exporters is the ordered list of span exporter names to construct
	// when no explicit span processors are supplied
	// (file, console, memory, otlp, sqlite).
	Exporters []string

	// FileExporterDir is where the file exporter writes trace files.
	FileExporterDir string

	// SQLitePath is the archive database path for the sqlite exporter.
	SQLitePath string

	// OTLPEndpoint configures the otlp exporter; empty disables it even
	// when requested.
	OTLPEndpoint string
	OTLPInsecure bool

	// MetricsEnabled controls the token-usage meter provider.
	MetricsEnabled bool

	// ScopeConfigPath points at the scope-config JSON file. Empty falls
	// back to tsuiseki_scopes.json in the working directory.
	ScopeConfigPath string

	// BatchTimeout for the batching span processors built around the
	// configured exporters.
	BatchTimeout time.Duration
}

// Load reads configuration from environment variables with defaults.
// Tracing configuration is never fatal: Load cannot fail.
func Load() Config {
	return Config{
		WorkflowName:    envStr("TSUISEKI_WORKFLOW_NAME", ""),
		Exporters:       splitList(envStr("TSUISEKI_EXPORTERS", "file")),
		FileExporterDir: envStr("TSUISEKI_FILE_EXPORTER_DIR", "."),
		SQLitePath:      envStr("TSUISEKI_SQLITE_PATH", "tsuiseki_traces.db"),
		OTLPEndpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		MetricsEnabled:  envBool("TSUISEKI_METRICS", true),
		ScopeConfigPath: envStr("TSUISEKI_SCOPE_CONFIG_PATH", ""),
		BatchTimeout:    envDuration("TSUISEKI_BATCH_TIMEOUT", 5*time.Second),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
