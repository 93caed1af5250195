package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nkrishnan/sensornet-server/internal/aggregation"
	"github.com/nkrishnan/sensornet-server/internal/analysis"
	"github.com/nkrishnan/sensornet-server/internal/database"
	"github.com/nkrishnan/sensornet-server/internal/forecast"
	"github.com/nkrishnan/sensornet-server/internal/metrics"
	"github.com/nkrishnan/sensornet-server/internal/protocol"
	"github.com/nkrishnan/sensornet-server/internal/queue"
	"github.com/nkrishnan/sensornet-server/internal/scheduler"
	"github.com/nkrishnan/sensornet-server/internal/window"
	"github.com/nkrishnan/sensornet-server/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Forecast & Aggregation Service...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// This service keeps its own windows, filled from the readings topic, so
	// forecasts do not depend on sharing memory with the analysis server.
	registry := window.NewRegistry(cfg.Analysis.WindowSize)
	noise := analysis.NewNoise(time.Now().UnixNano())
	forecaster := forecast.NewForecaster(registry, cfg.Forecast.Horizons, noise)

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, "forecaster-group")
	defer consumer.Close()

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicForecasts)
	defer producer.Close()
	fmt.Println("Kafka consumer and producer initialized")

	ctx := context.Background()

	// Fill windows from the readings stream
	go func() {
		for {
			msg, err := consumer.Consume(ctx)
			if err != nil {
				log.Printf("Failed to consume reading: %v\n", err)
				continue
			}

			readingMsg, err := protocol.DecodeReadingMessage(msg.Value)
			if err != nil {
				log.Printf("Failed to decode reading: %v\n", err)
				consumer.Commit(ctx, msg)
				continue
			}

			reading := readingMsg.Reading
			registry.Window(reading.NodeID).Push(&reading)

			if err := consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit offset: %v\n", err)
			}
		}
	}()

	// Create scheduler
	sched := scheduler.New()
	sched.Start()
	defer sched.Stop()
	fmt.Println("Scheduler started")

	// Schedule periodic forecast refresh
	err = sched.ScheduleEvery("forecast-refresh", cfg.Forecast.RefreshInterval, func() {
		runForecastCycle(ctx, forecaster, registry, db, producer)
	})
	if err != nil {
		log.Fatalf("Failed to schedule forecast refresh: %v", err)
	}
	fmt.Printf("Forecast refresh every %s for horizons %v\n",
		cfg.Forecast.RefreshInterval, cfg.Forecast.Horizons)

	// Schedule aggregation runs
	hourlyAgg := aggregation.NewHourlyAggregator(db)
	dailyAgg := aggregation.NewDailyAggregator(db)
	scheduleHourlyAggregation(sched, hourlyAgg, cfg.Aggregation.HourlyDelay)
	scheduleDailyAggregation(sched, dailyAgg, cfg.Aggregation.DailyTime)

	fmt.Println("\n✓ Forecast & Aggregation Service is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
}

// runForecastCycle regenerates predictions for every known node. Nodes with a
// live window get the trend-aware path; nodes seen only in the database fall
// back to the bootstrap path anchored on their last persisted reading.
func runForecastCycle(ctx context.Context, forecaster *forecast.Forecaster, registry *window.Registry, db *database.DB, producer *queue.Producer) {
	fmt.Println("\n--- Running Forecast Cycle ---")

	covered := make(map[string]bool)
	nodeCount := 0

	for _, nodeID := range registry.NodeIDs() {
		predictions := forecaster.Predict(nodeID)
		if predictions == nil {
			continue
		}
		covered[nodeID] = true
		nodeCount++
		publishForecast(ctx, db, producer, nodeID, predictions)
	}

	// Bootstrap nodes that have persisted readings but no usable window yet
	latest, err := db.GetLatestReadings()
	if err != nil {
		log.Printf("Failed to load latest readings: %v\n", err)
	} else {
		for _, reading := range latest {
			if covered[reading.NodeID] {
				continue
			}
			predictions := forecaster.PredictFromReading(reading)
			if predictions == nil {
				continue
			}
			nodeCount++
			publishForecast(ctx, db, producer, reading.NodeID, predictions)
		}
	}

	metrics.ForecastCycles.Inc()
	fmt.Printf("--- Forecast Cycle Complete (%d nodes) ---\n", nodeCount)
}

func publishForecast(ctx context.Context, db *database.DB, producer *queue.Producer, nodeID string, predictions []protocol.Prediction) {
	if err := db.ReplacePredictions(nodeID, predictions); err != nil {
		log.Printf("Failed to persist predictions for %s: %v\n", nodeID, err)
	}

	encoded, err := protocol.EncodeForecastMessage(&protocol.ForecastMessage{
		NodeID:      nodeID,
		GeneratedAt: time.Now().UTC(),
		Predictions: predictions,
	})
	if err != nil {
		log.Printf("Failed to encode forecast for %s: %v\n", nodeID, err)
		return
	}
	if err := producer.Publish(ctx, nodeID, encoded); err != nil {
		log.Printf("Failed to publish forecast for %s: %v\n", nodeID, err)
	}
}

func scheduleHourlyAggregation(sched *scheduler.Scheduler, agg *aggregation.HourlyAggregator, delay time.Duration) {
	taskID := "hourly-aggregation"

	var scheduleNext func()
	scheduleNext = func() {
		nextRun := agg.CalculateNextRunTime(delay)
		fmt.Printf("Next hourly aggregation scheduled for: %s\n", nextRun.Format("2006-01-02 15:04:05"))

		sched.ScheduleAt(taskID, nextRun, func() {
			fmt.Println("\n--- Running Hourly Aggregation ---")
			if err := agg.AggregatePreviousHour(); err != nil {
				log.Printf("Hourly aggregation failed: %v\n", err)
			}
			fmt.Println("--- Hourly Aggregation Complete ---")

			scheduleNext()
		})
	}

	scheduleNext()
}

func scheduleDailyAggregation(sched *scheduler.Scheduler, agg *aggregation.DailyAggregator, timeOfDay string) {
	taskID := "daily-aggregation"

	var scheduleNext func()
	scheduleNext = func() {
		nextRun, err := agg.CalculateNextRunTime(timeOfDay)
		if err != nil {
			log.Fatalf("Failed to calculate daily run time: %v", err)
		}
		fmt.Printf("Next daily aggregation scheduled for: %s\n", nextRun.Format("2006-01-02 15:04:05"))

		sched.ScheduleAt(taskID, nextRun, func() {
			fmt.Println("\n--- Running Daily Aggregation ---")
			if err := agg.AggregatePreviousDay(); err != nil {
				log.Printf("Daily aggregation failed: %v\n", err)
			}
			fmt.Println("--- Daily Aggregation Complete ---")

			scheduleNext()
		})
	}

	scheduleNext()
}
