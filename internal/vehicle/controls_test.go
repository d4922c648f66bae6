package vehicle

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babushkai/gta-sub001/internal/simulation"
)

func mappedVehicle(t *testing.T, kind Kind, c Controls, tn Tuning) *Vehicle {
	t.Helper()
	w := simulation.NewWorld(simulation.DefaultOptions())
	r := NewRegistry(w, DefaultProfiles(), nil)
	h, err := r.Create(kind, mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent(), nominalMass[kind])
	require.NoError(t, err)
	v, _ := r.Get(h)
	var m ControlMapper
	m.Set(v, c, tn)
	m.Apply(v)
	return v
}

func TestBoostCurves(t *testing.T) {
	d := DefaultProfiles()[KindCar].Drive

	assert.InDelta(t, d.LowSpeedBoostMax, LowSpeedBoost(d, 0), 1e-9)
	assert.InDelta(t, 1, LowSpeedBoost(d, d.BoostFadeSpeed), 1e-9)
	assert.InDelta(t, 1, LowSpeedBoost(d, 3*d.BoostFadeSpeed), 1e-9)
	assert.Greater(t, LowSpeedBoost(d, 2), LowSpeedBoost(d, 6))

	assert.Equal(t, 1.0, SprintBoost(d, 0, false))
	assert.InDelta(t, d.SprintBoostMax, SprintBoost(d, 0, true), 1e-9)
	fast := SprintBoost(d, 10*d.SprintFadeSpeed, true)
	assert.InDelta(t, 1+(d.SprintBoostMax-1)*d.SprintFloor, fast, 1e-9)

	assert.Equal(t, 1.0, SteerAttenuation(d, 0))
	assert.Equal(t, d.SteerFloor, SteerAttenuation(d, 1000))
}

func TestCarFrontSteersRearDrives(t *testing.T) {
	v := mappedVehicle(t, KindCar, Controls{Acceleration: 1, Steering: 1}, DefaultTuning())
	d := v.Profile().Drive

	for i, m := range v.Profile().Wheels {
		steer := v.Wheels().WheelSteering(i)
		engine := v.Wheels().WheelEngineForce(i)
		if m.Front {
			assert.InDelta(t, d.MaxSteerAngle, steer, 1e-9, "front wheel %d", i)
			assert.Zero(t, engine, "front wheel %d", i)
		} else {
			assert.Zero(t, steer, "rear wheel %d must never steer", i)
			want := d.BaseEngineForce * d.LowSpeedBoostMax
			assert.InDelta(t, want, engine, 1e-6, "rear wheel %d", i)
		}
		assert.Zero(t, v.Wheels().WheelBrake(i))
	}
}

func TestCarBrakesEvenly(t *testing.T) {
	v := mappedVehicle(t, KindTruck, Controls{Acceleration: 1, Brake: true}, Tuning{Accel: 1, Handling: 1, Braking: 2})
	want := v.Profile().Drive.BaseBrakeForce * 2
	for i := range v.Wheels().NumWheels() {
		assert.InDelta(t, want, v.Wheels().WheelBrake(i), 1e-9)
		assert.Zero(t, v.Wheels().WheelEngineForce(i), "brake overrides throttle")
	}
}

func TestReverseUsesReverseScale(t *testing.T) {
	v := mappedVehicle(t, KindCar, Controls{Acceleration: -1}, DefaultTuning())
	d := v.Profile().Drive
	want := -d.BaseEngineForce * d.LowSpeedBoostMax * d.ReverseScale
	assert.InDelta(t, want, v.Wheels().WheelEngineForce(2), 1e-6)
}

func TestInputsAreSanitized(t *testing.T) {
	v := mappedVehicle(t, KindCar,
		Controls{Acceleration: math.NaN(), Steering: 7},
		Tuning{Accel: math.Inf(1), Handling: -2, Braking: math.NaN()})

	assert.Equal(t, 0.0, v.Controls().Acceleration)
	assert.Equal(t, 1.0, v.Controls().Steering)
	for i := range v.Wheels().NumWheels() {
		assert.Zero(t, v.Wheels().WheelEngineForce(i))
		// Handling rating clamps to zero, so no steering either.
		assert.Zero(t, v.Wheels().WheelSteering(i))
	}
}

func TestMotorcycleMapping(t *testing.T) {
	v := mappedVehicle(t, KindMotorcycle, Controls{Brake: true, Steering: 1}, DefaultTuning())
	d := v.Profile().Drive
	front, rear := v.Wheels().WheelBrake(0), v.Wheels().WheelBrake(1)
	assert.Greater(t, front, rear, "front brake must be stronger")
	assert.InDelta(t, 2*d.BaseBrakeForce, front+rear, 1e-9)
	assert.Zero(t, v.Wheels().WheelSteering(1))
	assert.Greater(t, v.Wheels().WheelSteering(0), 0.0)

	// At rest the lean target is zero: leaning needs speed.
	assert.Zero(t, v.Lean().Target)
	assert.Equal(t, 1.0, v.Lean().LastSteering)

	v = mappedVehicle(t, KindMotorcycle, Controls{Acceleration: 1}, DefaultTuning())
	want := d.BaseEngineForce * d.LowSpeedBoostMax * d.PowerMultiplier
	assert.InDelta(t, want, v.Wheels().WheelEngineForce(1), 1e-6)
	assert.Zero(t, v.Wheels().WheelEngineForce(0))
}

func TestMotorcycleCounterSteerAndLeanTarget(t *testing.T) {
	w := simulation.NewWorld(simulation.DefaultOptions())
	r := NewRegistry(w, DefaultProfiles(), nil)
	h, _ := r.Create(KindMotorcycle, mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent(), 220)
	v, _ := r.Get(h)
	d, l := v.Profile().Drive, v.Profile().Lean

	var m ControlMapper
	m.Set(v, Controls{Steering: 1}, DefaultTuning())
	m.Apply(v)
	slow := v.Wheels().WheelSteering(0)

	v.Body().SetLinvel(mgl64.Vec3{0, 0, -20})
	m.Apply(v)
	fast := v.Wheels().WheelSteering(0)

	want := d.MaxSteerAngle * SteerAttenuation(d, 20) * math.Max(d.CounterSteerFloor, 1-20/d.CounterSteerFadeSpeed)
	assert.InDelta(t, want, fast, 1e-9)
	assert.Less(t, fast, slow)

	// Steering left at speed leans left: negative roll target, capped.
	assert.InDelta(t, -l.MaxLean, v.Lean().Target, 1e-9)
}

func TestWheelieTorqueOnlyAtLowSpeed(t *testing.T) {
	// The torque is accumulated on the body until the next world step.
	world := simulation.NewWorld(simulation.Options{})
	r := NewRegistry(world, DefaultProfiles(), nil)
	h, _ := r.Create(KindMotorcycle, mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent(), 220)
	bike, _ := r.Get(h)
	var m ControlMapper
	m.Set(bike, Controls{Acceleration: 1}, DefaultTuning())
	m.Apply(bike)
	world.Step(dt)
	assert.Greater(t, bike.Body().Angvel().X(), 0.0, "wheelie pitches nose up")

	bike.Body().SetAngvel(mgl64.Vec3{})
	bike.Body().SetLinvel(mgl64.Vec3{0, 0, -2 * bike.Profile().Drive.WheelieCutoffSpeed})
	m.Apply(bike)
	world.Step(dt)
	assert.InDelta(t, 0, bike.Body().Angvel().X(), 1e-9)
}

func TestStoppieTorqueWhenBrakingFast(t *testing.T) {
	world := simulation.NewWorld(simulation.Options{})
	r := NewRegistry(world, DefaultProfiles(), nil)
	h, _ := r.Create(KindMotorcycle, mgl64.Vec3{0, 5, 0}, mgl64.QuatIdent(), 220)
	bike, _ := r.Get(h)
	bike.Body().SetLinvel(mgl64.Vec3{0, 0, -15})

	var m ControlMapper
	m.Set(bike, Controls{Brake: true}, DefaultTuning())
	m.Apply(bike)
	world.Step(dt)
	assert.Less(t, bike.Body().Angvel().X(), 0.0, "stoppie pitches nose down")
}
