package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/babushkai/gta-sub001/internal/vehicle"
)

// EnvPrefix namespaces environment overrides, e.g. VDYN_SERVER_ADDR.
const EnvPrefix = "VDYN"

// SimulationConfig holds world and stepping settings.
type SimulationConfig struct {
	TickRate     int     `json:"tickRate" mapstructure:"tickRate"`
	Gravity      float64 `json:"gravity" mapstructure:"gravity"`
	GroundHeight float64 `json:"groundHeight" mapstructure:"groundHeight"`
	MaxBodies    int     `json:"maxBodies" mapstructure:"maxBodies"`
}

// DT is the fixed step length.
func (s SimulationConfig) DT() float64 {
	if s.TickRate <= 0 {
		return 1.0 / 60.0
	}
	return 1.0 / float64(s.TickRate)
}

// ServerConfig holds the sync server settings.
type ServerConfig struct {
	Addr         string `json:"addr" mapstructure:"addr"`
	SnapshotRate int    `json:"snapshotRate" mapstructure:"snapshotRate"`
	MaxVehicles  int    `json:"maxVehicles" mapstructure:"maxVehicles"`
}

// TelemetryConfig holds stability sample recording settings.
type TelemetryConfig struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	Capacity      int           `json:"capacity" mapstructure:"capacity"`
	SQLitePath    string        `json:"sqlitePath" mapstructure:"sqlitePath"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
}

// Config is the full runtime configuration.
type Config struct {
	LogLevel   string           `json:"logLevel" mapstructure:"logLevel"`
	Simulation SimulationConfig `json:"simulation" mapstructure:"simulation"`
	Server     ServerConfig     `json:"server" mapstructure:"server"`
	Telemetry  TelemetryConfig  `json:"telemetry" mapstructure:"telemetry"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")

	viper.SetDefault("simulation.tickRate", 60)
	viper.SetDefault("simulation.gravity", -9.81)
	viper.SetDefault("simulation.groundHeight", 0.0)
	viper.SetDefault("simulation.maxBodies", 0)

	viper.SetDefault("server.addr", ":9003")
	viper.SetDefault("server.snapshotRate", 30)
	viper.SetDefault("server.maxVehicles", 64)

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.capacity", 1024)
	viper.SetDefault("telemetry.sqlitePath", "")
	viper.SetDefault("telemetry.flushInterval", "5s")
}

// Load sets defaults, reads the optional config file at path and applies
// VDYN_* environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %v", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with no file or environment applied.
func Default() Config {
	return Config{
		LogLevel:   "info",
		Simulation: SimulationConfig{TickRate: 60, Gravity: -9.81},
		Server:     ServerConfig{Addr: ":9003", SnapshotRate: 30, MaxVehicles: 64},
		Telemetry:  TelemetryConfig{Enabled: true, Capacity: 1024, FlushInterval: 5 * time.Second},
	}
}

// Validate rejects settings the simulation cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Simulation.TickRate <= 0 || c.Simulation.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("simulation.tickRate %d out of range (1..1000)", c.Simulation.TickRate))
	}
	if c.Server.SnapshotRate <= 0 {
		errs = append(errs, fmt.Errorf("server.snapshotRate must be positive"))
	}
	if c.Telemetry.Capacity < 0 {
		errs = append(errs, fmt.Errorf("telemetry.capacity must not be negative"))
	}
	return errors.Join(errs...)
}

// Profiles returns the default vehicle profiles with any per-kind override
// under vehicles.<kind> applied on top.
func Profiles() (vehicle.Profiles, error) {
	ps := vehicle.DefaultProfiles()
	for _, k := range vehicle.Kinds() {
		key := "vehicles." + k.String()
		if !viper.IsSet(key) {
			continue
		}
		p := ps[k]
		if err := viper.UnmarshalKey(key, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		p.Kind = k
		ps[k] = p
	}
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	return ps, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}
