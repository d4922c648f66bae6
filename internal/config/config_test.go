package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babushkai/gta-sub001/internal/vehicle"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vdyn.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.InDelta(t, 1.0/60.0, cfg.Simulation.DT(), 1e-12)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	path := writeConfig(t, `{
		"logLevel": "debug",
		"simulation": { "tickRate": 120, "groundHeight": -1.5 },
		"telemetry": { "sqlitePath": "/tmp/samples.db", "flushInterval": "250ms" }
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 120, cfg.Simulation.TickRate)
	assert.Equal(t, -1.5, cfg.Simulation.GroundHeight)
	assert.Equal(t, -9.81, cfg.Simulation.Gravity)
	assert.Equal(t, "/tmp/samples.db", cfg.Telemetry.SQLitePath)
	assert.Equal(t, 250*time.Millisecond, cfg.Telemetry.FlushInterval)
	assert.Equal(t, ":9003", cfg.Server.Addr)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("VDYN_SERVER_ADDR", ":7777")
	t.Setenv("VDYN_SIMULATION_TICKRATE", "30")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, 30, cfg.Simulation.TickRate)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	_, err := Load("/nonexistent/path/vdyn.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_RejectsBadTickRate(t *testing.T) {
	t.Cleanup(viper.Reset)

	_, err := Load(writeConfig(t, `{"simulation": {"tickRate": 0}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tickRate")
}

func TestProfiles_DefaultsWithoutOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	_, err := Load("")
	require.NoError(t, err)

	ps, err := Profiles()
	require.NoError(t, err)
	assert.Equal(t, vehicle.DefaultProfiles()[vehicle.KindTruck], ps[vehicle.KindTruck])
}

func TestProfiles_PartialOverride(t *testing.T) {
	t.Cleanup(viper.Reset)

	path := writeConfig(t, `{
		"vehicles": {
			"car": {
				"drive": { "baseEngineForce": 4000 },
				"stability": { "antiRollGain": 50 }
			},
			"motorcycle": { "lean": { "maxLean": 0.5 } }
		}
	}`)
	_, err := Load(path)
	require.NoError(t, err)

	ps, err := Profiles()
	require.NoError(t, err)
	defaults := vehicle.DefaultProfiles()

	car := ps[vehicle.KindCar]
	assert.Equal(t, 4000.0, car.Drive.BaseEngineForce)
	assert.Equal(t, 50.0, car.Stability.AntiRollGain)
	assert.Equal(t, defaults[vehicle.KindCar].Drive.MaxSteerAngle, car.Drive.MaxSteerAngle)
	assert.Equal(t, defaults[vehicle.KindCar].Wheels, car.Wheels)
	assert.Equal(t, vehicle.KindCar, car.Kind)

	assert.Equal(t, 0.5, ps[vehicle.KindMotorcycle].Lean.MaxLean)
	assert.Equal(t, mgl64.Vec3{0.25, 0.45, 1.0}, ps[vehicle.KindMotorcycle].HalfExtents)
}
