package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nkrishnan/sensornet-server/internal/alerting"
	"github.com/nkrishnan/sensornet-server/internal/analysis"
	"github.com/nkrishnan/sensornet-server/internal/database"
	"github.com/nkrishnan/sensornet-server/internal/ingest"
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

	fmt.Println("Starting SensorNet Analysis Server...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Run migrations
	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Connect to Redis for alert deduplication state
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	fmt.Println("Connected to Redis")

	// Create Kafka topics
	for _, topic := range []string{cfg.Kafka.TopicReadings, cfg.Kafka.TopicForecasts} {
		if err := queue.CreateTopic(cfg.Kafka.Brokers, topic, cfg.Kafka.NumPartitions, 1); err != nil {
			fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
		}
	}
	// Alerts are low volume; a single partition keeps them globally ordered
	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, 1, 1); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}

	// Create producers
	readingsProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings)
	defer readingsProducer.Close()
	alertsProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
	defer alertsProducer.Close()
	fmt.Println("Kafka producers initialized")

	// Assemble the ingestion pipeline
	registry := window.NewRegistry(cfg.Analysis.WindowSize)
	noise := analysis.NewNoise(time.Now().UnixNano())
	scorer := analysis.NewScorer(cfg.Analysis.AnomalyThreshold, noise)
	deduper := alerting.NewDeduper(redisClient, cfg.Analysis.AlertDedupWindow)

	pipeline := ingest.NewPipeline(registry, scorer, deduper, db, readingsProducer, alertsProducer)
	fmt.Printf("Ingestion pipeline ready (window=%d, threshold=%.2f, dedup=%s)\n",
		cfg.Analysis.WindowSize, cfg.Analysis.AnomalyThreshold, cfg.Analysis.AlertDedupWindow)

	// Create scheduler
	sched := scheduler.New()
	sched.Start()
	defer sched.Stop()
	fmt.Println("Scheduler started")

	// Schedule the simulator if enabled
	if cfg.Simulator.Enabled {
		sim := ingest.NewSimulator(pipeline, cfg.Simulator.Nodes, time.Now().UnixNano())
		err := sched.ScheduleEvery("simulator", cfg.Simulator.Interval, func() {
			sim.Tick(context.Background())
		})
		if err != nil {
			log.Fatalf("Failed to schedule simulator: %v", err)
		}
		fmt.Printf("Simulator enabled for %d nodes every %s\n",
			len(cfg.Simulator.Nodes), cfg.Simulator.Interval)
	}

	// Expose Prometheus metrics
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		if err := http.ListenAndServe(addr, mux); err != nil {
			fmt.Printf("Metrics server stopped: %v\n", err)
		}
	}()

	// Print statistics and node health periodically
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			regStats := registry.Stats()
			schedStats := sched.Stats()
			fmt.Printf("\n--- Server Statistics ---\n")
			fmt.Printf("Tracked Nodes: %d (window capacity %d)\n",
				regStats.NodesTracked, regStats.WindowCapacity)
			fmt.Printf("Scheduled Tasks: %d\n", schedStats.PendingTasks)
			for _, nodeID := range registry.NodeIDs() {
				win, ok := registry.Get(nodeID)
				if !ok {
					continue
				}
				diagnosis := analysis.Diagnose(nodeID, win.Snapshot())
				if diagnosis.Status == analysis.DiagnosisAttention {
					fmt.Printf("Node %s needs attention (anomaly rate %.0f%%): %v\n",
						nodeID, diagnosis.AnomalyRate, diagnosis.Issues)
				}
			}
			fmt.Printf("------------------------\n\n")
		}
	}()

	fmt.Println("\n✓ SensorNet Analysis Server is running")
	fmt.Printf("✓ Metrics on http://localhost:%d/metrics\n", cfg.Metrics.Port)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
}
