// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file and AREA51_* env vars.
// - External errors are wrapped with this package's sentinels.
package config

// Store drivers understood by the repository package.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverREST   = "rest"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the row store: memory, sqlite, bolt or rest.
	StoreDriver string `koanf:"store_driver"`

	// StorePath is the database file for the sqlite and bolt drivers.
	StorePath string `koanf:"store_path"`

	// StoreURL is the base URL of the PostgREST/Supabase endpoint.
	StoreURL string `koanf:"store_url"`

	// StoreAPIKey is sent as apikey and bearer token to the rest driver.
	StoreAPIKey string `koanf:"store_api_key"`

	// StoreTable names the rows table (rest and sqlite drivers).
	StoreTable string `koanf:"store_table"`

	// StoreTimeoutMS bounds a single HTTP round-trip of the rest driver.
	// Zero keeps the driver default.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// BoardCapacity is the number of records a board keeps after eviction.
	BoardCapacity int `koanf:"board_capacity"`

	// LoadLimit caps how many rows a board load fetches.
	LoadLimit int `koanf:"load_limit"`

	// QueueSize bounds the dispatcher task queue.
	QueueSize int `koanf:"queue_size"`

	// IdempotencySize sets how many Idempotency-Key values are remembered.
	IdempotencySize int `koanf:"idempotency_size"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		StoreDriver:     DriverMemory,
		StorePath:       "area51.db",
		StoreTable:      "leaderboard",
		StoreTimeoutMS:  0,
		BoardCapacity:   10,
		LoadLimit:       50,
		QueueSize:       1024,
		IdempotencySize: 10_000,
	}
}
