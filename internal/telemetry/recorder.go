// Package telemetry records per-step stability samples and vehicle events
// so tuning changes can be judged against recorded runs.
package telemetry

import (
	"context"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/babushkai/gta-sub001/internal/vehicle"
)

// DefaultCapacity bounds the per-vehicle sample ring.
const DefaultCapacity = 1024

const maxRecentEvents = 1000

// MaxRetired bounds how many despawned vehicles keep their samples.
const MaxRetired = 32

// maxPending bounds each unflushed batch while the sink keeps failing.
const maxPending = 1 << 16

// Sample is one vehicle's attitude at one step, in degrees.
type Sample struct {
	Step      uint64
	Vehicle   string
	Kind      string
	RollDeg   float64
	PitchDeg  float64
	LeanDeg   float64
	Speed     float64
	Upright   float64
	Grounded  bool
	Emergency bool
}

// EventRecord is a stored vehicle event.
type EventRecord struct {
	Step    uint64
	Vehicle string
	Kind    string
	Type    string
}

// Sink persists drained samples and events.
type Sink interface {
	WriteSamples(ctx context.Context, runID string, samples []Sample) error
	WriteEvents(ctx context.Context, runID string, events []EventRecord) error
}

type ring struct {
	buf  []Sample
	next int
	full bool
}

func (r *ring) push(s Sample) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) items() []Sample {
	if !r.full {
		return append([]Sample(nil), r.buf[:r.next]...)
	}
	out := make([]Sample, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Recorder implements vehicle.Observer.
type Recorder struct {
	mu       sync.RWMutex
	runID    string
	capacity int
	rings    map[vehicle.Handle]*ring
	order    []vehicle.Handle
	retired  []vehicle.Handle

	totalEvents int64
	byType      map[string]int64
	recent      []EventRecord

	sink          Sink
	pendingSample []Sample
	pendingEvents []EventRecord
}

var _ vehicle.Observer = (*Recorder)(nil)

// NewRecorder keeps up to capacity samples per vehicle. A nil sink keeps
// everything in memory only.
func NewRecorder(capacity int, sink Sink) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		runID:    uuid.NewString(),
		capacity: capacity,
		rings:    make(map[vehicle.Handle]*ring),
		byType:   make(map[string]int64),
		recent:   make([]EventRecord, 0, 64),
		sink:     sink,
	}
}

// RunID identifies this recording in persisted rows.
func (r *Recorder) RunID() string { return r.runID }

func (r *Recorder) ObserveStep(rep vehicle.StepReport) {
	s := Sample{
		Step:      rep.Step,
		Vehicle:   rep.Handle.String(),
		Kind:      rep.Kind.String(),
		RollDeg:   mgl64.RadToDeg(rep.Roll),
		PitchDeg:  mgl64.RadToDeg(rep.Pitch),
		LeanDeg:   mgl64.RadToDeg(rep.Lean),
		Speed:     rep.Speed,
		Upright:   rep.Upright,
		Grounded:  rep.Grounded,
		Emergency: rep.Emergency,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rg, ok := r.rings[rep.Handle]
	if !ok {
		rg = &ring{buf: make([]Sample, r.capacity)}
		r.rings[rep.Handle] = rg
		r.order = append(r.order, rep.Handle)
	}
	rg.push(s)
	if r.sink != nil {
		r.pendingSample = append(r.pendingSample, s)
	}
}

func (r *Recorder) ObserveEvent(ev vehicle.Event) {
	rec := EventRecord{
		Step:    ev.Step,
		Vehicle: ev.Handle.String(),
		Kind:    ev.Kind.String(),
		Type:    string(ev.Type),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Type == vehicle.EventDespawn {
		r.retire(ev.Handle)
	}
	r.totalEvents++
	r.byType[rec.Type]++
	r.recent = append(r.recent, rec)
	if len(r.recent) > maxRecentEvents {
		r.recent = r.recent[len(r.recent)-maxRecentEvents:]
	}
	if r.sink != nil {
		r.pendingEvents = append(r.pendingEvents, rec)
	}
}

// retire marks h despawned and evicts the oldest despawned vehicles beyond
// MaxRetired. Caller holds r.mu.
func (r *Recorder) retire(h vehicle.Handle) {
	if _, ok := r.rings[h]; !ok {
		return
	}
	r.retired = append(r.retired, h)
	for len(r.retired) > MaxRetired {
		old := r.retired[0]
		r.retired = r.retired[1:]
		delete(r.rings, old)
		for i, o := range r.order {
			if o == old {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// Samples returns the retained samples for h, oldest first.
func (r *Recorder) Samples(h vehicle.Handle) []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rg, ok := r.rings[h]
	if !ok {
		return nil
	}
	return rg.items()
}

// RecentEvents returns up to limit of the newest events.
func (r *Recorder) RecentEvents(limit int) []EventRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.recent) {
		limit = len(r.recent)
	}
	out := make([]EventRecord, limit)
	copy(out, r.recent[len(r.recent)-limit:])
	return out
}

// EventCounts is a snapshot of event totals.
type EventCounts struct {
	Total  int64
	ByType map[string]int64
}

// Counts returns event totals by type.
func (r *Recorder) Counts() EventCounts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byType := make(map[string]int64, len(r.byType))
	for k, v := range r.byType {
		byType[k] = v
	}
	return EventCounts{Total: r.totalEvents, ByType: byType}
}

// Summary describes the stability of one vehicle over its retained samples.
type Summary struct {
	Vehicle           string
	Kind              string
	Samples           int
	MeanAbsRollDeg    float64
	StdDevRollDeg     float64
	P95AbsRollDeg     float64
	MaxAbsRollDeg     float64
	MaxAbsPitchDeg    float64
	MaxAbsLeanDeg     float64
	MeanSpeed         float64
	GroundedFraction  float64
	EmergencyFraction float64
}

// Summarize computes a Summary from samples.
func Summarize(samples []Sample) Summary {
	n := len(samples)
	if n == 0 {
		return Summary{}
	}
	roll := make([]float64, n)
	absRoll := make([]float64, n)
	speed := make([]float64, n)
	var s Summary
	var grounded, emergency int
	for i, smp := range samples {
		roll[i] = smp.RollDeg
		absRoll[i] = abs(smp.RollDeg)
		speed[i] = smp.Speed
		s.MaxAbsPitchDeg = max(s.MaxAbsPitchDeg, abs(smp.PitchDeg))
		s.MaxAbsLeanDeg = max(s.MaxAbsLeanDeg, abs(smp.LeanDeg))
		if smp.Grounded {
			grounded++
		}
		if smp.Emergency {
			emergency++
		}
	}
	sort.Float64s(absRoll)

	s.Vehicle = samples[0].Vehicle
	s.Kind = samples[0].Kind
	s.Samples = n
	s.MeanAbsRollDeg = stat.Mean(absRoll, nil)
	if n > 1 {
		s.StdDevRollDeg = stat.StdDev(roll, nil)
	}
	s.P95AbsRollDeg = stat.Quantile(0.95, stat.Empirical, absRoll, nil)
	s.MaxAbsRollDeg = absRoll[n-1]
	s.MeanSpeed = stat.Mean(speed, nil)
	s.GroundedFraction = float64(grounded) / float64(n)
	s.EmergencyFraction = float64(emergency) / float64(n)
	return s
}

// Summaries returns one Summary per observed vehicle in first-seen order.
func (r *Recorder) Summaries() []Summary {
	r.mu.RLock()
	handles := append([]vehicle.Handle(nil), r.order...)
	r.mu.RUnlock()

	out := make([]Summary, 0, len(handles))
	for _, h := range handles {
		out = append(out, Summarize(r.Samples(h)))
	}
	return out
}

// Flush drains pending samples and events into the sink. Batches that fail
// to write are kept for the next flush.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	samples, events := r.pendingSample, r.pendingEvents
	r.pendingSample, r.pendingEvents = nil, nil
	sink := r.sink
	r.mu.Unlock()

	if sink == nil {
		return nil
	}
	if len(samples) > 0 {
		if err := sink.WriteSamples(ctx, r.runID, samples); err != nil {
			r.requeue(samples, events)
			return err
		}
	}
	if len(events) > 0 {
		if err := sink.WriteEvents(ctx, r.runID, events); err != nil {
			r.requeue(nil, events)
			return err
		}
	}
	return nil
}

// requeue puts unwritten batches back ahead of anything observed since.
func (r *Recorder) requeue(samples []Sample, events []EventRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(samples) > 0 {
		r.pendingSample = append(samples, r.pendingSample...)
		if n := len(r.pendingSample); n > maxPending {
			r.pendingSample = r.pendingSample[n-maxPending:]
		}
	}
	if len(events) > 0 {
		r.pendingEvents = append(events, r.pendingEvents...)
		if n := len(r.pendingEvents); n > maxPending {
			r.pendingEvents = r.pendingEvents[n-maxPending:]
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
