package ingest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
)

// Simulator generates synthetic readings for a fixed set of nodes, used in
// deployments without physical hardware attached. Values follow a diurnal
// cycle with a small random walk per node, so consecutive readings look like
// a real sensor rather than white noise.
type Simulator struct {
	pipeline *Pipeline
	nodes    []string

	mu    sync.Mutex
	rng   *rand.Rand
	state map[string]*nodeState
}

type nodeState struct {
	tempOffset     float64
	humidityOffset float64
	pressureOffset float64
}

// NewSimulator creates a simulator feeding the given pipeline. A fixed seed
// yields a reproducible reading sequence.
func NewSimulator(pipeline *Pipeline, nodes []string, seed int64) *Simulator {
	return &Simulator{
		pipeline: pipeline,
		nodes:    nodes,
		rng:      rand.New(rand.NewSource(seed)),
		state:    make(map[string]*nodeState),
	}
}

// Tick generates and processes one reading per configured node.
func (s *Simulator) Tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, nodeID := range s.nodes {
		reading := s.generate(nodeID, now)
		if _, _, err := s.pipeline.Process(ctx, reading); err != nil {
			fmt.Printf("Simulator reading rejected for %s: %v\n", nodeID, err)
		}
	}
}

// generate builds one synthetic reading. The diurnal term peaks mid-afternoon
// and bottoms out before dawn; each node carries a slowly drifting offset so
// nodes disagree with each other the way separate sites would.
func (s *Simulator) generate(nodeID string, now time.Time) *protocol.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state[nodeID]
	if !ok {
		st = &nodeState{
			tempOffset:     s.rng.Float64()*4 - 2,
			humidityOffset: s.rng.Float64()*10 - 5,
			pressureOffset: s.rng.Float64()*6 - 3,
		}
		s.state[nodeID] = st
	}

	// Random walk, pulled gently back toward zero so offsets stay bounded
	st.tempOffset = st.tempOffset*0.98 + (s.rng.Float64()-0.5)*0.6
	st.humidityOffset = st.humidityOffset*0.98 + (s.rng.Float64()-0.5)*2
	st.pressureOffset = st.pressureOffset*0.98 + (s.rng.Float64()-0.5)*0.8

	hour := float64(now.Hour()) + float64(now.Minute())/60
	diurnal := math.Sin(((hour - 6) * math.Pi) / 12)

	temp := 18 + diurnal*7 + st.tempOffset + (s.rng.Float64()-0.5)*0.8
	humidity := clampValue(65-diurnal*18+st.humidityOffset+(s.rng.Float64()-0.5)*3, 5, 100)
	pressure := 1013 + st.pressureOffset + (s.rng.Float64()-0.5)*1.2

	luminosity := 0.0
	if diurnal > 0 {
		luminosity = diurnal * 45000 * (0.85 + s.rng.Float64()*0.3)
	}

	rain := 0.0
	if s.rng.Float64() < 0.06 {
		rain = s.rng.Float64() * 12
	}

	wind := math.Abs(s.rng.NormFloat64()*3 + 4)

	return &protocol.Reading{
		NodeID:      nodeID,
		Timestamp:   now.Unix(),
		Temperature: protocol.Float(math.Round(temp*100) / 100),
		Humidity:    protocol.Float(math.Round(humidity*100) / 100),
		Pressure:    protocol.Float(math.Round(pressure*100) / 100),
		Luminosity:  protocol.Float(math.Round(luminosity*10) / 10),
		RainLevel:   protocol.Float(math.Round(rain*100) / 100),
		WindSpeed:   protocol.Float(math.Round(wind*100) / 100),
	}
}

func clampValue(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
