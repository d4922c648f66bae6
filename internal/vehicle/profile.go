package vehicle

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind is the immutable vehicle class chosen at creation.
type Kind uint8

const (
	KindCar Kind = iota
	KindTruck
	KindMotorcycle
)

var ErrUnknownKind = errors.New("vehicle: unknown kind")

func (k Kind) String() string {
	switch k {
	case KindCar:
		return "car"
	case KindTruck:
		return "truck"
	case KindMotorcycle:
		return "motorcycle"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind accepts the String form, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "car":
		return KindCar, nil
	case "truck":
		return KindTruck, nil
	case "motorcycle", "bike", "motorbike":
		return KindMotorcycle, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindCar, KindTruck, KindMotorcycle}
}

// WheelMount is a fixed chassis-local wheel position and its role.
type WheelMount struct {
	Connection mgl64.Vec3 `mapstructure:"connection"`
	Front      bool       `mapstructure:"front"`
	Steers     bool       `mapstructure:"steers"`
	Drives     bool       `mapstructure:"drives"`
}

// SuspensionTuning is shared by every wheel of a kind.
type SuspensionTuning struct {
	RestLength    float64 `mapstructure:"restLength"`
	Radius        float64 `mapstructure:"radius"`
	Stiffness     float64 `mapstructure:"stiffness"`
	Damping       float64 `mapstructure:"damping"`
	FrictionSlip  float64 `mapstructure:"frictionSlip"`
	SideGrip      float64 `mapstructure:"sideGrip"`
	RollInfluence float64 `mapstructure:"rollInfluence"`
}

// DriveTuning shapes the ControlMapper curves. Forces are newtons per
// driven or braked wheel.
type DriveTuning struct {
	BaseEngineForce  float64 `mapstructure:"baseEngineForce"`
	PowerMultiplier  float64 `mapstructure:"powerMultiplier"`
	LowSpeedBoostMax float64 `mapstructure:"lowSpeedBoostMax"`
	BoostFadeSpeed   float64 `mapstructure:"boostFadeSpeed"`
	SprintBoostMax   float64 `mapstructure:"sprintBoostMax"`
	SprintFadeSpeed  float64 `mapstructure:"sprintFadeSpeed"`
	SprintFloor      float64 `mapstructure:"sprintFloor"`
	ReverseScale     float64 `mapstructure:"reverseScale"`

	MaxSteerAngle  float64 `mapstructure:"maxSteerAngle"`
	SteerFadeSpeed float64 `mapstructure:"steerFadeSpeed"`
	SteerFloor     float64 `mapstructure:"steerFloor"`

	BaseBrakeForce float64 `mapstructure:"baseBrakeForce"`
	// FrontBrakeBias is the front share of total brake force; 0.5 is even.
	FrontBrakeBias float64 `mapstructure:"frontBrakeBias"`

	// Motorcycle only.
	CounterSteerFadeSpeed float64 `mapstructure:"counterSteerFadeSpeed"`
	CounterSteerFloor     float64 `mapstructure:"counterSteerFloor"`
	WheelieThrottle       float64 `mapstructure:"wheelieThrottle"`
	WheelieCutoffSpeed    float64 `mapstructure:"wheelieCutoffSpeed"`
	WheelieAccel          float64 `mapstructure:"wheelieAccel"`
	StoppieMinSpeed       float64 `mapstructure:"stoppieMinSpeed"`
	StoppieAccel          float64 `mapstructure:"stoppieAccel"`
}

// StabilityTuning drives the car/truck policy. Gains are angular
// accelerations (rad/s² per rad or per rad/s) unless noted.
type StabilityTuning struct {
	UprightThreshold float64 `mapstructure:"uprightThreshold"`

	DownforceBase float64 `mapstructure:"downforceBase"` // m/s²
	DownforceK    float64 `mapstructure:"downforceK"`    // m/s² per (m/s)²
	DownforceCap  float64 `mapstructure:"downforceCap"`  // m/s²

	RollDamping  float64 `mapstructure:"rollDamping"`
	PitchDamping float64 `mapstructure:"pitchDamping"`
	YawDamping   float64 `mapstructure:"yawDamping"`

	AntiRollThreshold  float64 `mapstructure:"antiRollThreshold"`
	AntiRollGain       float64 `mapstructure:"antiRollGain"`
	AntiPitchThreshold float64 `mapstructure:"antiPitchThreshold"`
	AntiPitchGain      float64 `mapstructure:"antiPitchGain"`

	LateralThreshold float64 `mapstructure:"lateralThreshold"` // m/s
	LateralMinSpeed  float64 `mapstructure:"lateralMinSpeed"`  // m/s
	LateralGain      float64 `mapstructure:"lateralGain"`      // share of sideways momentum removed per step

	AirDamping   float64 `mapstructure:"airDamping"`
	AirSelfRight float64 `mapstructure:"airSelfRight"`

	CriticalRoll  float64 `mapstructure:"criticalRoll"`
	EmergencyBase float64 `mapstructure:"emergencyBase"`
	EmergencyGain float64 `mapstructure:"emergencyGain"`
}

// LeanTuning drives the motorcycle policy.
type LeanTuning struct {
	UprightThreshold float64 `mapstructure:"uprightThreshold"`

	MaxLean        float64 `mapstructure:"maxLean"`
	LeanRate       float64 `mapstructure:"leanRate"` // 1/s
	LeanSpeedRef   float64 `mapstructure:"leanSpeedRef"`
	LeanGain       float64 `mapstructure:"leanGain"`
	SelfRightGain  float64 `mapstructure:"selfRightGain"`
	SelfRightSpeed float64 `mapstructure:"selfRightSpeed"`
	SelfRightFloor float64 `mapstructure:"selfRightFloor"`
	SteerRelief    float64 `mapstructure:"steerRelief"`
	RollDamping    float64 `mapstructure:"rollDamping"`

	PitchThreshold float64 `mapstructure:"pitchThreshold"`
	PitchGain      float64 `mapstructure:"pitchGain"`
	PitchDamping   float64 `mapstructure:"pitchDamping"`

	TurnAssistGain     float64 `mapstructure:"turnAssistGain"`
	TurnAssistMinSpeed float64 `mapstructure:"turnAssistMinSpeed"`
	TurnAssistSpeedRef float64 `mapstructure:"turnAssistSpeedRef"`

	GyroMinSpeed float64 `mapstructure:"gyroMinSpeed"`
	GyroSpeedRef float64 `mapstructure:"gyroSpeedRef"`
	GyroGain     float64 `mapstructure:"gyroGain"`

	AirDamping    float64 `mapstructure:"airDamping"`
	AirSelfRight  float64 `mapstructure:"airSelfRight"`
	AirPitchLevel float64 `mapstructure:"airPitchLevel"`

	CriticalRoll  float64 `mapstructure:"criticalRoll"`
	EmergencyBase float64 `mapstructure:"emergencyBase"`
	EmergencyGain float64 `mapstructure:"emergencyGain"`
}

// JumpTuning gates and sizes the jump action.
type JumpTuning struct {
	MaxVerticalSpeed float64 `mapstructure:"maxVerticalSpeed"`
	CompressedRatio  float64 `mapstructure:"compressedRatio"`
	LaunchSpeed      float64 `mapstructure:"launchSpeed"`
	PitchKick        float64 `mapstructure:"pitchKick"` // rad/s
}

// Profile is everything a kind fixes at creation: geometry, wheel layout
// and tuning.
type Profile struct {
	Kind           Kind       `mapstructure:"-"`
	HalfExtents    mgl64.Vec3 `mapstructure:"halfExtents"`
	ColliderOffset mgl64.Vec3 `mapstructure:"colliderOffset"`
	Friction       float64    `mapstructure:"friction"`
	Restitution    float64    `mapstructure:"restitution"`
	LinearDamping  float64    `mapstructure:"linearDamping"`
	AngularDamping float64    `mapstructure:"angularDamping"`
	NominalMass    float64    `mapstructure:"nominalMass"`

	Wheels     []WheelMount     `mapstructure:"wheels"`
	Suspension SuspensionTuning `mapstructure:"suspension"`
	Drive      DriveTuning      `mapstructure:"drive"`
	Stability  StabilityTuning  `mapstructure:"stability"`
	Lean       LeanTuning       `mapstructure:"lean"`
	Jump       JumpTuning       `mapstructure:"jump"`
}

// RideHeight is the chassis origin height above ground at which the wheels
// touch down with uncompressed suspension.
func (p Profile) RideHeight() float64 {
	lowest := 0.0
	for _, w := range p.Wheels {
		lowest = math.Min(lowest, w.Connection.Y())
	}
	return -lowest + p.Suspension.RestLength + p.Suspension.Radius
}

// WheelCount is the fixed number of wheels for the kind.
func (k Kind) WheelCount() int {
	if k == KindMotorcycle {
		return 2
	}
	return 4
}

// Profiles maps each kind to its profile.
type Profiles map[Kind]Profile

// Validate checks the wheel count invariant for every profile.
func (ps Profiles) Validate() error {
	for _, k := range Kinds() {
		p, ok := ps[k]
		if !ok {
			return fmt.Errorf("profile %s: missing", k)
		}
		if len(p.Wheels) != k.WheelCount() {
			return fmt.Errorf("profile %s: %d wheels, want %d", k, len(p.Wheels), k.WheelCount())
		}
		if p.Suspension.RestLength <= 0 || p.Suspension.Radius <= 0 {
			return fmt.Errorf("profile %s: suspension rest length and radius must be positive", k)
		}
	}
	return nil
}

// Clone deep-copies the profiles so callers can override tuning safely.
func (ps Profiles) Clone() Profiles {
	out := make(Profiles, len(ps))
	for k, p := range ps {
		p.Wheels = append([]WheelMount(nil), p.Wheels...)
		out[k] = p
	}
	return out
}

func deg(d float64) float64 { return mgl64.DegToRad(d) }

// DefaultProfiles returns the starting arcade tuning. The numbers encode
// feel and are expected to be re-tuned against the stability scenarios.
func DefaultProfiles() Profiles {
	return Profiles{
		KindCar:        carProfile(),
		KindTruck:      truckProfile(),
		KindMotorcycle: motorcycleProfile(),
	}
}

func fourWheels(halfTrack, y, halfBase float64) []WheelMount {
	return []WheelMount{
		{Connection: mgl64.Vec3{-halfTrack, y, -halfBase}, Front: true, Steers: true},
		{Connection: mgl64.Vec3{halfTrack, y, -halfBase}, Front: true, Steers: true},
		{Connection: mgl64.Vec3{-halfTrack, y, halfBase}, Drives: true},
		{Connection: mgl64.Vec3{halfTrack, y, halfBase}, Drives: true},
	}
}

func carStability() StabilityTuning {
	return StabilityTuning{
		UprightThreshold:   0.6,
		DownforceBase:      1.5,
		DownforceK:         0.008,
		DownforceCap:       8,
		RollDamping:        6,
		PitchDamping:       6,
		YawDamping:         0.6,
		AntiRollThreshold:  deg(3),
		AntiRollGain:       30,
		AntiPitchThreshold: deg(3),
		AntiPitchGain:      24,
		LateralThreshold:   0.15,
		LateralMinSpeed:    1,
		LateralGain:        0.25,
		AirDamping:         3,
		AirSelfRight:       14,
		CriticalRoll:       deg(50),
		EmergencyBase:      30,
		EmergencyGain:      90,
	}
}

func carProfile() Profile {
	return Profile{
		Kind:           KindCar,
		HalfExtents:    mgl64.Vec3{0.9, 0.4, 2.0},
		ColliderOffset: mgl64.Vec3{0, -0.25, 0},
		Friction:       0.8,
		Restitution:    0.1,
		LinearDamping:  0.1,
		AngularDamping: 0.8,
		NominalMass:    1200,
		Wheels:         fourWheels(0.8, -0.3, 1.3),
		Suspension: SuspensionTuning{
			RestLength:    0.3,
			Radius:        0.35,
			Stiffness:     45,
			Damping:       5,
			FrictionSlip:  10,
			SideGrip:      0.9,
			RollInfluence: 0.1,
		},
		Drive: DriveTuning{
			BaseEngineForce:  2600,
			PowerMultiplier:  1,
			LowSpeedBoostMax: 2.2,
			BoostFadeSpeed:   12,
			SprintBoostMax:   1.35,
			SprintFadeSpeed:  40,
			SprintFloor:      0.1,
			ReverseScale:     0.5,
			MaxSteerAngle:    deg(32),
			SteerFadeSpeed:   45,
			SteerFloor:       0.3,
			BaseBrakeForce:   5000,
			FrontBrakeBias:   0.5,
		},
		Stability: carStability(),
		Jump: JumpTuning{
			MaxVerticalSpeed: 0.6,
			CompressedRatio:  0.97,
			LaunchSpeed:      6.5,
			PitchKick:        0.6,
		},
	}
}

func truckProfile() Profile {
	st := carStability()
	st.AntiRollGain = 36
	st.AntiPitchGain = 28
	st.DownforceCap = 6
	st.CriticalRoll = deg(45)
	return Profile{
		Kind:           KindTruck,
		HalfExtents:    mgl64.Vec3{1.1, 0.6, 2.8},
		ColliderOffset: mgl64.Vec3{0, -0.35, 0},
		Friction:       0.8,
		Restitution:    0.05,
		LinearDamping:  0.12,
		AngularDamping: 1.0,
		NominalMass:    3500,
		Wheels:         fourWheels(1.0, -0.45, 1.9),
		Suspension: SuspensionTuning{
			RestLength:    0.35,
			Radius:        0.45,
			Stiffness:     40,
			Damping:       5,
			FrictionSlip:  9,
			SideGrip:      0.85,
			RollInfluence: 0.1,
		},
		Drive: DriveTuning{
			BaseEngineForce:  6500,
			PowerMultiplier:  1,
			LowSpeedBoostMax: 2.0,
			BoostFadeSpeed:   10,
			SprintBoostMax:   1.25,
			SprintFadeSpeed:  30,
			SprintFloor:      0.1,
			ReverseScale:     0.5,
			MaxSteerAngle:    deg(28),
			SteerFadeSpeed:   35,
			SteerFloor:       0.3,
			BaseBrakeForce:   12000,
			FrontBrakeBias:   0.5,
		},
		Stability: st,
		Jump: JumpTuning{
			MaxVerticalSpeed: 0.6,
			CompressedRatio:  0.97,
			LaunchSpeed:      5.0,
			PitchKick:        0.4,
		},
	}
}

func motorcycleProfile() Profile {
	return Profile{
		Kind:           KindMotorcycle,
		HalfExtents:    mgl64.Vec3{0.25, 0.45, 1.0},
		ColliderOffset: mgl64.Vec3{0, -0.15, 0},
		Friction:       0.9,
		Restitution:    0.1,
		LinearDamping:  0.08,
		AngularDamping: 0.8,
		NominalMass:    220,
		Wheels: []WheelMount{
			{Connection: mgl64.Vec3{0, -0.35, -0.75}, Front: true, Steers: true},
			{Connection: mgl64.Vec3{0, -0.35, 0.75}, Drives: true},
		},
		Suspension: SuspensionTuning{
			RestLength:    0.25,
			Radius:        0.33,
			Stiffness:     60,
			Damping:       6,
			FrictionSlip:  8,
			SideGrip:      1.0,
			RollInfluence: 0.05,
		},
		Drive: DriveTuning{
			BaseEngineForce:       900,
			PowerMultiplier:       1.4,
			LowSpeedBoostMax:      2.4,
			BoostFadeSpeed:        10,
			SprintBoostMax:        1.3,
			SprintFadeSpeed:       35,
			SprintFloor:           0.1,
			ReverseScale:          0.35,
			MaxSteerAngle:         deg(30),
			SteerFadeSpeed:        40,
			SteerFloor:            0.3,
			BaseBrakeForce:        1400,
			FrontBrakeBias:        0.65,
			CounterSteerFadeSpeed: 25,
			CounterSteerFloor:     0.25,
			WheelieThrottle:       0.8,
			WheelieCutoffSpeed:    12,
			WheelieAccel:          6,
			StoppieMinSpeed:       8,
			StoppieAccel:          5,
		},
		Lean: LeanTuning{
			UprightThreshold:   0.5,
			MaxLean:            deg(35),
			LeanRate:           5,
			LeanSpeedRef:       12,
			LeanGain:           150,
			SelfRightGain:      300,
			SelfRightSpeed:     30,
			SelfRightFloor:     0.3,
			SteerRelief:        0.5,
			RollDamping:        22,
			PitchThreshold:     deg(20),
			PitchGain:          20,
			PitchDamping:       4,
			TurnAssistGain:     2.5,
			TurnAssistMinSpeed: 1,
			TurnAssistSpeedRef: 10,
			GyroMinSpeed:       8,
			GyroSpeedRef:       25,
			GyroGain:           80,
			AirDamping:         2,
			AirSelfRight:       6,
			AirPitchLevel:      5,
			CriticalRoll:       deg(65),
			EmergencyBase:      40,
			EmergencyGain:      120,
		},
		Jump: JumpTuning{
			MaxVerticalSpeed: 0.6,
			CompressedRatio:  0.97,
			LaunchSpeed:      5.0,
			PitchKick:        0.8,
		},
	}
}
