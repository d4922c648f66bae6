// Package vehicle turns a generic rigid-body world into drivable cars,
// trucks and motorcycles: registry, control mapping, stabilization and
// actions, owned by a single Service.
package vehicle

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/babushkai/gta-sub001/internal/physics"
)

var ErrInvalidMass = errors.New("vehicle: mass must be positive and finite")

// Handle identifies a vehicle. Gen changes whenever a slot is reused, so a
// handle kept past Remove never reaches the new occupant.
type Handle struct {
	Index uint32
	Gen   uint32
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Gen)
}

// IsZero reports whether h was never issued. Generations start at 1.
func (h Handle) IsZero() bool { return h.Gen == 0 }

// LeanState is the smoothed motorcycle lean in radians. Positive leans the
// right side down, matching roll.
type LeanState struct {
	Target  float64
	Current float64
	// LastSteering is the raw steering input of the latest control frame.
	LastSteering float64
}

// Vehicle is one registered chassis with its wheel controller.
type Vehicle struct {
	handle  Handle
	kind    Kind
	profile Profile
	policy  Policy
	drive   driveLayout

	body   physics.Body
	wheels physics.WheelController

	controls Controls
	tuning   Tuning
	lean     LeanState

	emergency bool
}

func (v *Vehicle) Handle() Handle                  { return v.handle }
func (v *Vehicle) Kind() Kind                      { return v.kind }
func (v *Vehicle) Profile() Profile                { return v.profile }
func (v *Vehicle) Body() physics.Body              { return v.body }
func (v *Vehicle) Wheels() physics.WheelController { return v.wheels }
func (v *Vehicle) Lean() LeanState                 { return v.lean }
func (v *Vehicle) Controls() Controls              { return v.controls }

// InEmergency reports whether the last step ran emergency recovery.
func (v *Vehicle) InEmergency() bool { return v.emergency }

// Mass is the chassis mass supplied at creation.
func (v *Vehicle) Mass() float64 { return v.body.Mass() }

func (v *Vehicle) resetMotion() {
	v.body.SetLinvel(mgl64.Vec3{})
	v.body.SetAngvel(mgl64.Vec3{})
	v.lean = LeanState{}
	v.emergency = false
}
