package types

import "github.com/go-gl/mathgl/mgl64"

// Vec3 represents a position or vector in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat is a unit quaternion (x, y, z, w).
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func FromVec3(v mgl64.Vec3) Vec3 { return Vec3{X: v[0], Y: v[1], Z: v[2]} }
func (v Vec3) Vec3() mgl64.Vec3  { return mgl64.Vec3{v.X, v.Y, v.Z} }

func FromQuat(q mgl64.Quat) Quat {
	return Quat{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W}
}

func (q Quat) Quat() mgl64.Quat {
	return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.X, q.Y, q.Z}}
}

// VehicleControls is the per-frame driver input sent by a client.
type VehicleControls struct {
	Sequence     uint64  `json:"sequence"`
	Acceleration float64 `json:"acceleration"` // -1..1
	Steering     float64 `json:"steering"`     // -1..1, positive left
	Brake        bool    `json:"brake"`
	Sprint       bool    `json:"sprint"`
	Jump         bool    `json:"jump"`
	ClientMS     int64   `json:"client_ms"`
}

// WheelState is one wheel's visual pose.
type WheelState struct {
	Position         Vec3    `json:"position"`
	Rotation         Quat    `json:"rotation"`
	SuspensionLength float64 `json:"suspension_length"`
	InContact        bool    `json:"in_contact"`
}

// VehicleState is the authoritative replicated state of one vehicle.
type VehicleState struct {
	VehicleID string       `json:"vehicle_id"`
	ClientID  string       `json:"client_id,omitempty"`
	Kind      string       `json:"kind"`
	Position  Vec3         `json:"position"`
	Rotation  Quat         `json:"rotation"`
	Velocity  Vec3         `json:"velocity"`
	Speed     float64      `json:"speed"`
	RollDeg   float64      `json:"roll_deg"`
	PitchDeg  float64      `json:"pitch_deg"`
	LeanDeg   float64      `json:"lean_deg,omitempty"`
	Wheels    []WheelState `json:"wheels"`
	LastSeq   uint64       `json:"last_seq"`
}

// WorldState is replicated to all clients.
type WorldState struct {
	Tick     uint64         `json:"tick"`
	Vehicles []VehicleState `json:"vehicles"`
	Events   []VehicleEvent `json:"events,omitempty"`
}

// VehicleEvent tracks state changes worth UI/audio feedback.
type VehicleEvent struct {
	Type      string `json:"type"` // spawn|despawn|jump|emergency_recovery
	VehicleID string `json:"vehicle_id"`
	Kind      string `json:"kind"`
	Tick      uint64 `json:"tick"`
}

// ClientEnvelope is sent from client to server.
type ClientEnvelope struct {
	Type     string           `json:"type"` // controls|respawn|ping
	Controls *VehicleControls `json:"controls,omitempty"`
}

// ServerEnvelope is sent from server to client.
type ServerEnvelope struct {
	Type      string      `json:"type"` // welcome|state|pong|error
	Tick      uint64      `json:"tick,omitempty"`
	VehicleID string      `json:"vehicle_id,omitempty"`
	State     *WorldState `json:"state,omitempty"`
	ServerMS  int64       `json:"server_ms,omitempty"`
	Message   string      `json:"message,omitempty"`
	AckSeq    uint64      `json:"ack_seq,omitempty"`
}
