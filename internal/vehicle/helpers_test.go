package vehicle

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"

	"github.com/babushkai/gta-sub001/internal/shared/logger"
	"github.com/babushkai/gta-sub001/internal/simulation"
)

const dt = 1.0 / 60.0

var nominalMass = map[Kind]float64{
	KindCar:        1200,
	KindTruck:      3500,
	KindMotorcycle: 220,
}

func newTestService(t *testing.T, opts simulation.Options) (*Service, *simulation.World) {
	t.Helper()
	w := simulation.NewWorld(opts)
	return NewService(w, DefaultProfiles(), logger.Nop()), w
}

func spawn(t *testing.T, s *Service, kind Kind) Handle {
	t.Helper()
	p, ok := s.Profile(kind)
	require.True(t, ok)
	h, err := s.Create(kind, mgl64.Vec3{0, p.RideHeight(), 0}, mgl64.QuatIdent(), nominalMass[kind])
	require.NoError(t, err)
	return h
}

func run(s *Service, steps int) {
	for range steps {
		s.Update(dt)
	}
}

func absDeg(rad float64) float64 {
	return math.Abs(mgl64.RadToDeg(rad))
}

// recorder collects observer callbacks.
type recorder struct {
	steps  []StepReport
	events []Event
}

func (r *recorder) ObserveStep(sr StepReport) { r.steps = append(r.steps, sr) }
func (r *recorder) ObserveEvent(e Event)      { r.events = append(r.events, e) }

func (r *recorder) count(t EventType) int {
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
