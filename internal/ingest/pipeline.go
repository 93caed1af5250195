package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkrishnan/sensornet-server/internal/alerting"
	"github.com/nkrishnan/sensornet-server/internal/analysis"
	"github.com/nkrishnan/sensornet-server/internal/database"
	"github.com/nkrishnan/sensornet-server/internal/metrics"
	"github.com/nkrishnan/sensornet-server/internal/protocol"
	"github.com/nkrishnan/sensornet-server/internal/window"
)

// Store is the slice of the persistence layer the pipeline needs.
type Store interface {
	GetPreviousReading(nodeID string) (*protocol.Reading, error)
	InsertAlert(alert *database.StoredAlert) error
}

// Publisher sends an encoded message keyed by node id.
type Publisher interface {
	Publish(ctx context.Context, nodeID string, value []byte) error
}

// AlertGate decides whether an alert candidate passes deduplication.
type AlertGate interface {
	ShouldEmit(ctx context.Context, nodeID string, alertType protocol.AlertType) (bool, error)
}

// Pipeline is the ingestion boundary: it scores each incoming reading against
// its node's window, feeds the window, derives and deduplicates alerts, and
// fans the results out to Kafka. Readings are persisted downstream by the
// dbwriter consuming the readings topic; alerts are persisted here so the
// dedup decision and the stored alert stay together.
type Pipeline struct {
	registry *window.Registry
	scorer   *analysis.Scorer
	builder  *alerting.Builder
	gate     AlertGate
	store    Store
	readings Publisher
	alerts   Publisher
}

// NewPipeline creates the ingestion pipeline. The gate, store and publishers
// may be nil, in which case the corresponding step is skipped (alerts are
// emitted without dedup, nothing is persisted or published).
func NewPipeline(registry *window.Registry, scorer *analysis.Scorer, gate AlertGate, store Store, readings, alerts Publisher) *Pipeline {
	return &Pipeline{
		registry: registry,
		scorer:   scorer,
		builder:  alerting.NewBuilder(),
		gate:     gate,
		store:    store,
		readings: readings,
		alerts:   alerts,
	}
}

// ProcessRaw parses and validates a JSON reading, then processes it.
func (p *Pipeline) ProcessRaw(ctx context.Context, data []byte) (*protocol.ReadingMessage, []protocol.Alert, error) {
	reading, err := protocol.ParseReading(data)
	if err != nil {
		metrics.PipelineErrors.WithLabelValues("parse").Inc()
		return nil, nil, fmt.Errorf("rejected reading: %w", err)
	}
	return p.Process(ctx, reading)
}

// Process runs one reading through the full pipeline: score, window update,
// alert derivation, dedup, persistence and publishing. It returns the scored
// reading envelope and the alerts that survived deduplication. Collaborator
// failures after scoring are logged and counted but do not fail the reading;
// the only hard error is an invalid reading.
func (p *Pipeline) Process(ctx context.Context, reading *protocol.Reading) (*protocol.ReadingMessage, []protocol.Alert, error) {
	if err := protocol.ValidateReading(reading); err != nil {
		metrics.PipelineErrors.WithLabelValues("validate").Inc()
		return nil, nil, fmt.Errorf("rejected reading: %w", err)
	}

	win := p.registry.Window(reading.NodeID)
	snapshot := win.Snapshot()

	previous := win.Latest()
	if previous == nil && p.store != nil {
		// Fresh window after a restart; the last persisted reading still
		// anchors the gradient layer.
		dbPrev, err := p.store.GetPreviousReading(reading.NodeID)
		if err != nil {
			metrics.PipelineErrors.WithLabelValues("previous_lookup").Inc()
			fmt.Printf("Failed to load previous reading for %s: %v\n", reading.NodeID, err)
		} else {
			previous = dbPrev
		}
	}

	var result *protocol.AnalysisResult
	if len(snapshot) > 0 {
		result = p.scorer.ScoreWithHistory(reading, previous, snapshot)
	} else {
		result = p.scorer.ScoreWithoutHistory(reading, previous)
	}

	reading.AnomalyScore = result.AnomalyScore
	reading.IsAnomaly = result.IsAnomaly

	// The window receives the scored reading so later z-scores and forecasts
	// see the same values that were persisted.
	win.Push(reading)

	metrics.ReadingsProcessed.Inc()
	metrics.AnomalyScore.Observe(result.AnomalyScore)
	metrics.NodesTracked.Set(float64(p.registry.Count()))
	if result.IsAnomaly {
		metrics.AnomaliesDetected.WithLabelValues(string(result.RiskLevel)).Inc()
		fmt.Printf("🚨 Anomaly on %s: score=%.4f risk=%s factors=%v\n",
			reading.NodeID, result.AnomalyScore, result.RiskLevel, result.Factors)
	}

	msg := &protocol.ReadingMessage{
		EventID:    uuid.New().String(),
		ReceivedAt: time.Now().UTC(),
		Reading:    *reading,
		Analysis:   result,
	}

	if p.readings != nil {
		encoded, err := protocol.EncodeReadingMessage(msg)
		if err != nil {
			metrics.PipelineErrors.WithLabelValues("encode").Inc()
			fmt.Printf("Failed to encode reading message for %s: %v\n", reading.NodeID, err)
		} else if err := p.readings.Publish(ctx, reading.NodeID, encoded); err != nil {
			metrics.PipelineErrors.WithLabelValues("publish_reading").Inc()
			fmt.Printf("Failed to publish reading for %s: %v\n", reading.NodeID, err)
		}
	}

	emitted := p.emitAlerts(ctx, reading, previous)

	return msg, emitted, nil
}

func (p *Pipeline) emitAlerts(ctx context.Context, reading, previous *protocol.Reading) []protocol.Alert {
	candidates := p.builder.BuildAlerts(reading, previous)
	if len(candidates) == 0 {
		return nil
	}

	var emitted []protocol.Alert
	for _, candidate := range candidates {
		if p.gate != nil {
			ok, err := p.gate.ShouldEmit(ctx, reading.NodeID, candidate.Type)
			if err != nil {
				metrics.PipelineErrors.WithLabelValues("dedup").Inc()
				fmt.Printf("Dedup check failed for %s/%s: %v\n", reading.NodeID, candidate.Type, err)
				// Fail open: a Redis outage should not silence alerts
				ok = true
			}
			if !ok {
				metrics.AlertsSuppressed.WithLabelValues(string(candidate.Type)).Inc()
				continue
			}
		}

		alert := alerting.Promote(candidate, reading.NodeID, reading.Timestamp)
		metrics.AlertsEmitted.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()
		fmt.Printf("⚠️  Alert [%s/%s] %s: %s\n", alert.Severity, alert.Type, alert.NodeID, alert.Message)

		if p.store != nil {
			stored := &database.StoredAlert{
				NodeID:    alert.NodeID,
				Timestamp: time.Unix(alert.Timestamp, 0).UTC(),
				Type:      string(alert.Type),
				Severity:  string(alert.Severity),
				Message:   alert.Message,
			}
			if err := p.store.InsertAlert(stored); err != nil {
				metrics.PipelineErrors.WithLabelValues("persist_alert").Inc()
				fmt.Printf("Failed to persist alert for %s: %v\n", alert.NodeID, err)
			}
		}

		if p.alerts != nil {
			encoded, err := protocol.EncodeAlertMessage(&protocol.AlertMessage{
				EventID: uuid.New().String(),
				Alert:   alert,
				SentAt:  time.Now().UTC(),
			})
			if err != nil {
				metrics.PipelineErrors.WithLabelValues("encode").Inc()
			} else if err := p.alerts.Publish(ctx, alert.NodeID, encoded); err != nil {
				metrics.PipelineErrors.WithLabelValues("publish_alert").Inc()
				fmt.Printf("Failed to publish alert for %s: %v\n", alert.NodeID, err)
			}
		}

		emitted = append(emitted, alert)
	}

	return emitted
}
