package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WebhookEnv names the environment variable that supplies the Discord webhook
// when the config leaves it empty.
const WebhookEnv = "DISCORD_WEBHOOK_URL"

// DefaultPath is where the binary looks for its configuration.
const DefaultPath = "configs/flightlogger.yaml"

// Config holds the application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Server   ServerConfig   `yaml:"server"`
	Ticker   TickerConfig   `yaml:"ticker"`
	Engine   EngineConfig   `yaml:"engine"`
	Airports AirportsConfig `yaml:"airports"`
	Sim      SimConfig      `yaml:"sim"`
	Report   ReportConfig   `yaml:"report"`
	Request  RequestConfig  `yaml:"request"`
	Pilot    PilotConfig    `yaml:"pilot"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// TickerConfig holds ticker settings.
type TickerConfig struct {
	TelemetryLoop Duration `yaml:"telemetry_loop"`
}

// EngineConfig holds the flight phase thresholds.
type EngineConfig struct {
	TakeoffAGLFt       float64  `yaml:"takeoff_agl_ft"`
	LandingDebounce    Duration `yaml:"landing_debounce"`
	ButterThresholdFPM float64  `yaml:"butter_threshold_fpm"`
	CrashThresholdFPM  float64  `yaml:"crash_threshold_fpm"`
	ResumeMaxAge       Duration `yaml:"resume_max_age"`
}

// AirportsConfig holds the airport reference data settings.
type AirportsConfig struct {
	Source   string   `yaml:"source"`
	Geofence Distance `yaml:"geofence"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// SimConfig holds settings for the telemetry source.
type SimConfig struct {
	Provider   string        `yaml:"provider"`
	StaleAfter Duration      `yaml:"stale_after"`
	Mock       MockSimConfig `yaml:"mock"`
}

// MockSimConfig holds settings for the mock simulation.
type MockSimConfig struct {
	StartLat       float64  `yaml:"start_lat"`
	StartLon       float64  `yaml:"start_lon"`
	FieldElevation Distance `yaml:"field_elevation"`
	StartHeading   float64  `yaml:"start_heading"`
	CruiseAltFt    float64  `yaml:"cruise_alt_ft"`
	TouchdownVSFPM float64  `yaml:"touchdown_vs_fpm"`
	DurationParked Duration `yaml:"duration_parked"`
	DurationTaxi   Duration `yaml:"duration_taxi"`
	DurationHold   Duration `yaml:"duration_hold"`
	DurationCruise Duration `yaml:"duration_cruise"`
}

// ReportConfig holds report delivery settings.
type ReportConfig struct {
	DiscordWebhook string `yaml:"discord_webhook"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// PilotConfig holds the identity stamped on new sessions.
type PilotConfig struct {
	Callsign string `yaml:"callsign"`
	Aircraft string `yaml:"aircraft"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Server: LogSettings{
				Path:       "logs/server.log",
				Level:      "INFO",
				MaxSizeMB:  10,
				MaxBackups: 3,
			},
			Requests: LogSettings{
				Path:       "logs/requests.log",
				Level:      "DEBUG",
				MaxSizeMB:  5,
				MaxBackups: 1,
			},
		},
		DB: DBConfig{
			Path: "data/flightlogger.db",
		},
		Server: ServerConfig{
			Address: "localhost:1920",
		},
		Ticker: TickerConfig{
			TelemetryLoop: Duration(time.Second),
		},
		Engine: EngineConfig{
			TakeoffAGLFt:       100,
			LandingDebounce:    Duration(time.Second),
			ButterThresholdFPM: -60,
			CrashThresholdFPM:  -800,
			ResumeMaxAge:       Duration(Day),
		},
		Airports: AirportsConfig{
			Source:   "https://raw.githubusercontent.com/seabus0316/GeoFS-METAR-system/refs/heads/main/airports_with_tz.json",
			Geofence: Distance(30000),
			CacheTTL: Duration(Week),
		},
		Sim: SimConfig{
			Provider:   "bridge",
			StaleAfter: Duration(3 * time.Second),
			Mock: MockSimConfig{
				StartLat:       25.0797,
				StartLon:       121.2342,
				FieldElevation: Distance(32),
				StartHeading:   53,
				CruiseAltFt:    3000,
				TouchdownVSFPM: -150,
				DurationParked: Duration(10 * time.Second),
				DurationTaxi:   Duration(30 * time.Second),
				DurationHold:   Duration(10 * time.Second),
				DurationCruise: Duration(2 * time.Minute),
			},
		},
		Request: RequestConfig{
			Retries: 5,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(60 * time.Second),
			},
		},
		Pilot: PilotConfig{},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// An existing file is merged over the defaults but never written back, so user
// formatting and comments survive.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Fallback only; never saved back to disk.
	if cfg.Report.DiscordWebhook == "" {
		cfg.Report.DiscordWebhook = os.Getenv(WebhookEnv)
	}

	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var reWindowsVar = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// expandPath resolves $VAR, ${VAR} and %VAR% references.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = reWindowsVar.ReplaceAllStringFunc(p, func(m string) string {
		return os.Getenv(strings.Trim(m, "%"))
	})
	return os.ExpandEnv(p)
}

func (c *Config) expandPaths() {
	c.Log.Server.Path = expandPath(c.Log.Server.Path)
	c.Log.Requests.Path = expandPath(c.Log.Requests.Path)
	c.DB.Path = expandPath(c.DB.Path)
	if !strings.Contains(c.Airports.Source, "://") {
		c.Airports.Source = expandPath(c.Airports.Source)
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Sim.Provider {
	case "bridge", "mock":
	default:
		errs = append(errs, fmt.Errorf("invalid sim provider '%s': must be 'bridge' or 'mock'", c.Sim.Provider))
	}

	e := c.Engine
	if e.TakeoffAGLFt <= 0 {
		errs = append(errs, fmt.Errorf("engine.takeoff_agl_ft must be positive, got %v", e.TakeoffAGLFt))
	}
	if e.LandingDebounce < 0 {
		errs = append(errs, fmt.Errorf("engine.landing_debounce must not be negative"))
	}
	if e.CrashThresholdFPM >= e.ButterThresholdFPM {
		errs = append(errs, fmt.Errorf("engine.crash_threshold_fpm (%v) must be below butter_threshold_fpm (%v)", e.CrashThresholdFPM, e.ButterThresholdFPM))
	}
	if c.Airports.Geofence <= 0 {
		errs = append(errs, fmt.Errorf("airports.geofence must be positive, got %v", float64(c.Airports.Geofence)))
	}
	if c.Request.Retries < 0 {
		errs = append(errs, fmt.Errorf("request.retries must not be negative"))
	}

	return errors.Join(errs...)
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# FlightLogger Configuration
# ------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles), ft (feet)
# Secrets: discord_webhook may be left empty and supplied via DISCORD_WEBHOOK_URL (.env)

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: bridge, mock\n${1}provider:"))

	reQuality := regexp.MustCompile(`(?m)^(\s+)butter_threshold_fpm:`)
	data = reQuality.ReplaceAll(data, []byte("${1}# Touchdown vertical speed: above butter = BUTTER, above crash = HARD, else CRASH\n${1}butter_threshold_fpm:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
