// Package storage provides the miner's persistent journal. It uses BoltDB as
// the underlying storage engine to keep served predictions and the report of
// every discovery run.
//
// Keys are time-ordered, so range queries are cursor scans.
package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"forecast-miner/internal/discovery"
	"forecast-miner/internal/forecast"

	"go.etcd.io/bbolt"
)

const (
	predictionsBucket = "predictions" // Bucket name for served predictions
	discoveriesBucket = "discoveries" // Bucket name for discovery reports

	dbFileName = "miner-journal.db"
)

// PredictionRecord is a served prediction.
type PredictionRecord struct {
	RequestID  string            `json:"request_id"`
	Timestamp  time.Time         `json:"timestamp"`
	Prediction float64           `json:"prediction"`
	Interval   forecast.Interval `json:"interval"`
	Policy     string            `json:"policy,omitempty"`
	Source     string            `json:"source,omitempty"`
	ServedAt   time.Time         `json:"served_at"`
}

// DiscoveryRecord is a stored discovery report.
type DiscoveryRecord struct {
	Outcome string           `json:"outcome"`
	Report  discovery.Report `json:"report"`
}

// Store provides persistent storage using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New creates a new storage instance in dataPath.
// It initializes the BoltDB database and creates necessary buckets.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(discoveriesBucket)); err != nil {
			return fmt.Errorf("create discoveries bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// timeKey encodes t so that byte order matches time order, including
// instants before 1970.
func timeKey(t time.Time, suffix string) []byte {
	key := make([]byte, 8, 8+len(suffix))
	binary.BigEndian.PutUint64(key, uint64(t.UnixNano())^(1<<63))
	return append(key, suffix...)
}

// RecordPrediction stores a served prediction keyed by its forecast timestamp.
func (s *Store) RecordPrediction(rec PredictionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}
		return b.Put(timeKey(rec.Timestamp, rec.RequestID), data)
	})
}

// RecordDiscovery stores a discovery report keyed by its start time.
func (s *Store) RecordDiscovery(report discovery.Report) error {
	outcome := "failed"
	if report.Final() == discovery.Ready {
		outcome = "ready"
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(discoveriesBucket))

		data, err := json.Marshal(DiscoveryRecord{Outcome: outcome, Report: report})
		if err != nil {
			return fmt.Errorf("marshal discovery report: %w", err)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(timeKey(report.Started(), string(binary.BigEndian.AppendUint64(nil, seq))), data)
	})
}

// Predictions returns predictions whose forecast timestamp lies in
// [start, end], ordered by timestamp.
func (s *Store) Predictions(start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		startKey := timeKey(start, "")
		endKey := timeKey(end.Add(time.Nanosecond), "")

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) < 0; k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// Discoveries returns up to limit most recent discovery records, newest
// first. A non-positive limit returns all of them.
func (s *Store) Discoveries(limit int) ([]DiscoveryRecord, error) {
	var records []DiscoveryRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(discoveriesBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec DiscoveryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}
