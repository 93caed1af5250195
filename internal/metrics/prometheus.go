package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadingsProcessed counts readings that completed the ingest pipeline
	ReadingsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensornet_readings_processed_total",
			Help: "Total number of readings processed by the ingest pipeline",
		},
	)

	// AnomaliesDetected counts readings flagged as anomalous
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensornet_anomalies_detected_total",
			Help: "Total number of anomalous readings by risk level",
		},
		[]string{"risk_level"},
	)

	// AlertsEmitted counts alerts that survived deduplication
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensornet_alerts_emitted_total",
			Help: "Total number of alerts emitted after deduplication",
		},
		[]string{"type", "severity"},
	)

	// AlertsSuppressed counts alert candidates dropped by deduplication
	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensornet_alerts_suppressed_total",
			Help: "Total number of alert candidates suppressed by deduplication",
		},
		[]string{"type"},
	)

	// AnomalyScore observes the distribution of computed anomaly scores
	AnomalyScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sensornet_anomaly_score",
			Help:    "Distribution of computed anomaly scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.65, 0.75, 0.85, 0.95, 1},
		},
	)

	// ForecastCycles counts completed forecast regeneration cycles
	ForecastCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensornet_forecast_cycles_total",
			Help: "Total number of completed forecast refresh cycles",
		},
	)

	// NodesTracked reports the number of nodes with a live sliding window
	NodesTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensornet_nodes_tracked",
			Help: "Number of nodes with an active sliding window",
		},
	)

	// PipelineErrors counts failures in downstream collaborators
	PipelineErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensornet_pipeline_errors_total",
			Help: "Total number of ingest pipeline errors by stage",
		},
		[]string{"stage"},
	)
)
