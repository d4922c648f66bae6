package main

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/physics"
	"github.com/babushkai/gta-sub001/internal/vehicle"
)

// scenario is a scripted drive used to compare tuning changes.
type scenario struct {
	name  string
	steps int
	// spawn returns the initial position and rotation; nil means at ride
	// height facing -Z.
	spawn func(p vehicle.Profile) (mgl64.Vec3, mgl64.Quat)
	drive func(step int) vehicle.Controls
}

func throttle(a float64) func(int) vehicle.Controls {
	return func(int) vehicle.Controls { return vehicle.Controls{Acceleration: a} }
}

var scenarios = map[string]scenario{
	"upright": {
		name:  "upright",
		steps: 600,
		drive: throttle(0),
	},
	"straight": {
		name:  "straight",
		steps: 600,
		drive: throttle(1),
	},
	"braking": {
		name:  "braking",
		steps: 900,
		drive: func(step int) vehicle.Controls {
			if step < 300 {
				return vehicle.Controls{Acceleration: 1}
			}
			return vehicle.Controls{Brake: true}
		},
	},
	"slalom": {
		name:  "slalom",
		steps: 900,
		drive: func(step int) vehicle.Controls {
			steer := 0.0
			if step > 120 {
				// Alternate every second at 60 Hz.
				if (step/60)%2 == 0 {
					steer = 1
				} else {
					steer = -1
				}
			}
			return vehicle.Controls{Acceleration: 0.8, Steering: steer}
		},
	},
	"emergency": {
		name:  "emergency",
		steps: 360,
		spawn: func(p vehicle.Profile) (mgl64.Vec3, mgl64.Quat) {
			roll := mgl64.DegToRad(70)
			return mgl64.Vec3{0, p.RideHeight() + 2, 0}, mgl64.QuatRotate(roll, physics.LocalForward)
		},
		drive: throttle(0),
	},
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for n := range scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// result is the end state of one scenario run for one kind.
type result struct {
	Scenario string
	Kind     vehicle.Kind
	Handle   vehicle.Handle
	Final    vehicle.Transform
}

// runScenario spawns one vehicle of kind, drives it through sc at dt and
// returns its final transform. Reports flow to the service observers.
func runScenario(svc *vehicle.Service, sc scenario, kind vehicle.Kind, dt float64) (result, error) {
	p, ok := svc.Profile(kind)
	if !ok {
		return result{}, fmt.Errorf("%w: %s", vehicle.ErrUnknownKind, kind)
	}
	pos, rot := mgl64.Vec3{0, p.RideHeight(), 0}, vehicle.SpawnRotation(0)
	if sc.spawn != nil {
		pos, rot = sc.spawn(p)
	}
	h, err := svc.Create(kind, pos, rot, p.NominalMass)
	if err != nil {
		return result{}, fmt.Errorf("spawn %s for %s: %w", kind, sc.name, err)
	}
	defer svc.Remove(h)

	for step := range sc.steps {
		svc.ApplyControls(h, sc.drive(step), vehicle.DefaultTuning())
		svc.Update(dt)
	}
	tr, _ := svc.GetTransform(h)
	return result{Scenario: sc.name, Kind: kind, Handle: h, Final: tr}, nil
}
