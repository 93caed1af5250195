package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/nkrishnan/sensornet-server/internal/protocol"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	fmt.Println("All migrations completed successfully")
	return nil
}

// UpsertNode inserts or updates a node
func (db *DB) UpsertNode(node *Node) error {
	query := `
		INSERT INTO nodes (node_id, name, lat, lon, is_simulated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (node_id) DO UPDATE
		SET name = EXCLUDED.name,
		    lat = EXCLUDED.lat,
		    lon = EXCLUDED.lon,
		    is_simulated = EXCLUDED.is_simulated,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := db.Exec(query, node.NodeID, node.Name, node.Lat, node.Lon, node.IsSimulated)
	return err
}

// GetNode retrieves a node by id
func (db *DB) GetNode(nodeID string) (*Node, error) {
	query := `
		SELECT node_id, name, lat, lon, is_simulated, created_at, updated_at
		FROM nodes
		WHERE node_id = $1
	`

	var node Node
	err := db.QueryRow(query, nodeID).Scan(
		&node.NodeID,
		&node.Name,
		&node.Lat,
		&node.Lon,
		&node.IsSimulated,
		&node.CreatedAt,
		&node.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &node, nil
}

// ListNodeIDs returns the ids of every registered node
func (db *DB) ListNodeIDs() ([]string, error) {
	rows, err := db.Query(`SELECT node_id FROM nodes ORDER BY node_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// InsertReading inserts a scored reading
func (db *DB) InsertReading(reading *StoredReading) error {
	query := `
		INSERT INTO readings (
			node_id, timestamp, temperature, humidity, pressure,
			luminosity, rain_level, wind_speed, anomaly_score, is_anomaly, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	return db.QueryRow(
		query,
		reading.NodeID,
		reading.Timestamp,
		reading.Temperature,
		reading.Humidity,
		reading.Pressure,
		reading.Luminosity,
		reading.RainLevel,
		reading.WindSpeed,
		reading.AnomalyScore,
		reading.IsAnomaly,
		reading.ReceivedAt,
	).Scan(&reading.ID)
}

// GetPreviousReading returns the most recent persisted reading for a node,
// or nil when the node has none yet.
func (db *DB) GetPreviousReading(nodeID string) (*protocol.Reading, error) {
	query := `
		SELECT node_id, timestamp, temperature, humidity, pressure,
		       luminosity, rain_level, wind_speed, anomaly_score, is_anomaly, received_at
		FROM readings
		WHERE node_id = $1
		ORDER BY received_at DESC
		LIMIT 1
	`

	var sr StoredReading
	err := db.QueryRow(query, nodeID).Scan(
		&sr.NodeID,
		&sr.Timestamp,
		&sr.Temperature,
		&sr.Humidity,
		&sr.Pressure,
		&sr.Luminosity,
		&sr.RainLevel,
		&sr.WindSpeed,
		&sr.AnomalyScore,
		&sr.IsAnomaly,
		&sr.ReceivedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return sr.Reading(), nil
}

// GetLatestReadings returns the most recent reading per node, used to
// bootstrap forecasts before any in-memory window exists.
func (db *DB) GetLatestReadings() ([]*protocol.Reading, error) {
	query := `
		SELECT DISTINCT ON (node_id)
		       node_id, timestamp, temperature, humidity, pressure,
		       luminosity, rain_level, wind_speed, anomaly_score, is_anomaly, received_at
		FROM readings
		ORDER BY node_id, received_at DESC
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*protocol.Reading
	for rows.Next() {
		var sr StoredReading
		if err := rows.Scan(
			&sr.NodeID,
			&sr.Timestamp,
			&sr.Temperature,
			&sr.Humidity,
			&sr.Pressure,
			&sr.Luminosity,
			&sr.RainLevel,
			&sr.WindSpeed,
			&sr.AnomalyScore,
			&sr.IsAnomaly,
			&sr.ReceivedAt,
		); err != nil {
			return nil, err
		}
		readings = append(readings, sr.Reading())
	}

	return readings, rows.Err()
}

// InsertAlert inserts a new alert
func (db *DB) InsertAlert(alert *StoredAlert) error {
	query := `
		INSERT INTO alerts (node_id, timestamp, type, severity, message, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	return db.QueryRow(
		query,
		alert.NodeID,
		alert.Timestamp,
		alert.Type,
		alert.Severity,
		alert.Message,
		alert.Acknowledged,
	).Scan(&alert.ID)
}

// AcknowledgeAlert marks an alert as acknowledged
func (db *DB) AcknowledgeAlert(alertID int64) error {
	_, err := db.Exec(`UPDATE alerts SET acknowledged = true WHERE id = $1`, alertID)
	return err
}

// ReplacePredictions atomically replaces every forecast horizon for a node.
// Forecasts are regenerated wholesale on each cycle, never patched one
// horizon at a time.
func (db *DB) ReplacePredictions(nodeID string, predictions []protocol.Prediction) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM predictions WHERE node_id = $1`, nodeID); err != nil {
		return fmt.Errorf("failed to clear predictions: %w", err)
	}

	query := `
		INSERT INTO predictions (
			node_id, horizon_hours, predicted_temp, predicted_humidity,
			predicted_pressure, extreme_event_probability, event_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, p := range predictions {
		var eventType *string
		if p.EventType != "" {
			s := string(p.EventType)
			eventType = &s
		}

		if _, err := tx.Exec(
			query,
			p.NodeID,
			p.HorizonHours,
			p.PredictedTemp,
			p.PredictedHumidity,
			p.PredictedPressure,
			p.ExtremeEventProbability,
			eventType,
		); err != nil {
			return fmt.Errorf("failed to insert prediction: %w", err)
		}
	}

	return tx.Commit()
}
