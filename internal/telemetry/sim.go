package telemetry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Gear shift thresholds for the synthetic driver. An upshift from gear N
// becomes possible above upshiftSpeed[N] km/h, a downshift from gear N
// below downshiftSpeed[N].
var (
	upshiftSpeed   = map[int]float64{1: 20, 2: 40, 3: 70, 4: 100, 5: 140}
	upshiftChance  = map[int]float64{1: 0.15, 2: 0.12, 3: 0.10, 4: 0.08, 5: 0.06}
	downshiftSpeed = map[int]float64{6: 120, 5: 80, 4: 50, 3: 25, 2: 10}
	downshiftProb  = map[int]float64{6: 0.08, 5: 0.10, 4: 0.12, 3: 0.15, 2: 0.20}
)

const (
	simMaxSpeed  = 250.0
	simStartFuel = 50.0
)

// SimSource synthesizes plausible driving physics so the rig can run
// without the simulator attached: a random-walk speed chasing a moving
// target, probabilistic speed-gated gear shifts, longitudinal
// acceleration derived from pedal state, and gentle sinusoidal body
// motion. Safe for concurrent use.
type SimSource struct {
	mu    sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
	start time.Time

	speed float64
	gear  int
}

// NewSimSource creates a synthetic source. The same seed reproduces the
// same drive.
func NewSimSource(seed int64) *SimSource {
	return &SimSource{
		rng:   rand.New(rand.NewSource(seed)),
		now:   time.Now,
		start: time.Now(),
		gear:  1,
	}
}

// Sample advances the synthetic drive one step and returns the snapshot.
func (s *SimSource) Sample() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step()
	elapsed := s.now().Sub(s.start).Seconds()

	gas := s.rng.Float64()*0.7 + 0.3
	if s.speed >= 180 {
		gas = s.rng.Float64()*0.4 + 0.1
	}
	brake := 0.0
	if s.speed > 100 {
		brake = s.rng.Float64() * 0.3
	}

	return Sample{
		SpeedKmh: s.speed,
		Gear:     s.gear,
		Gas:      gas,
		Brake:    brake,
		AccG: AccG{
			Lateral:      s.rng.Float64() - 0.5,
			Vertical:     s.rng.Float64()*0.4 - 0.2,
			Longitudinal: (gas-brake)*2 + s.rng.Float64()*0.6 - 0.3,
		},
		Pitch: math.Sin(elapsed*0.5) * 0.1,
		Roll:  math.Sin(elapsed*0.8) * 0.05,
		Fuel:  math.Max(0, simStartFuel-elapsed*0.1),
	}
}

func (s *SimSource) step() {
	target := s.rng.Float64()*150 + 50
	if s.speed < target {
		s.speed += s.rng.Float64()*4 + 1
	} else {
		s.speed -= s.rng.Float64()*2 + 1
	}
	s.speed = math.Max(0, math.Min(s.speed, simMaxSpeed))

	if limit, ok := upshiftSpeed[s.gear]; ok && s.speed > limit {
		if s.rng.Float64() < upshiftChance[s.gear] {
			s.gear++
			return
		}
	}
	if limit, ok := downshiftSpeed[s.gear]; ok && s.speed < limit {
		if s.rng.Float64() < downshiftProb[s.gear] {
			s.gear--
		}
	}
}
