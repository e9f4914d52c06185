package learning

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketRecords    = []byte("records")
	bucketAggregates = []byte("aggregates")
)

// BoltStore implements Store using BoltDB. Records live in per-type
// sub-buckets keyed by insertion sequence; aggregates live in a flat
// bucket keyed by task type. Bolt's single-writer transactions give
// Record the per-type serialization the data model requires.
type BoltStore struct {
	db         *bolt.DB
	windowDays int
	auditLog   *audit.Log
	now        func() time.Time
}

// NewBoltStore opens (or creates) the learning database in dataDir.
func NewBoltStore(dataDir string, windowDays int, auditLog *audit.Log) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create learning directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "learning.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open learning database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRecords, bucketAggregates} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{
		db:         db,
		windowDays: windowDays,
		auditLog:   auditLog,
		now:        time.Now,
	}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is still readable.
func (s *BoltStore) Ping() error {
	return s.db.View(func(*bolt.Tx) error { return nil })
}

// TotalSamples counts recorded outcomes across every task type.
func (s *BoltStore) TotalSamples() int {
	total := 0
	_ = s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		return records.ForEachBucket(func(name []byte) error {
			total += records.Bucket(name).Stats().KeyN
			return nil
		})
	})
	return total
}

// Record appends one outcome and updates the running aggregates using
// Welford's recurrence. Population variance: a single sample has
// variance zero.
func (s *BoltStore) Record(taskType types.TaskType, durationMS float64, outcome string,
	retryCount int, retrySucceeded bool, slaBreached bool) bool {

	if taskType == "" || durationMS < 0 {
		log.WithComponent("learning").Warn().
			Str("task_type", string(taskType)).
			Float64("duration_ms", durationMS).
			Msg("dropping invalid learning record")
		return false
	}

	rec := types.LearningRecord{
		Timestamp:      s.now(),
		TaskType:       taskType,
		DurationMS:     durationMS,
		Outcome:        outcome,
		RetryCount:     retryCount,
		RetrySucceeded: retrySucceeded,
		SLABreached:    slaBreached,
	}

	var total int
	err := s.db.Update(func(tx *bolt.Tx) error {
		records, err := tx.Bucket(bucketRecords).CreateBucketIfNotExists([]byte(taskType))
		if err != nil {
			return fmt.Errorf("failed to open records bucket: %w", err)
		}

		seq, err := records.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		if err := records.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("failed to store record: %w", err)
		}

		metrics := s.loadMetrics(tx, taskType)
		applyRecord(metrics, rec)
		metrics.LastUpdated = rec.Timestamp
		total = metrics.TotalCount

		return s.putMetrics(tx, metrics)
	})
	if err != nil {
		log.WithComponent("learning").Error().
			Err(err).
			Str("task_type", string(taskType)).
			Msg("failed to record outcome")
		return false
	}

	s.auditLog.Append(audit.OpLearningUpdate, string(taskType), "learning_engine", "",
		audit.OutcomeSuccess, fmt.Sprintf("task_type=%s total_count=%d", taskType, total))
	return true
}

// Query returns the aggregates for a task type, nil on a cold start or
// unreadable data.
func (s *BoltStore) Query(taskType types.TaskType) *types.LearningMetrics {
	var metrics *types.LearningMetrics
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAggregates).Get([]byte(taskType))
		if data == nil {
			return nil
		}
		var m types.LearningMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			log.WithComponent("learning").Warn().
				Err(err).
				Str("task_type", string(taskType)).
				Msg("corrupt aggregates, treating as cold start")
			return nil
		}
		metrics = &m
		return nil
	})
	if err != nil {
		return nil
	}
	return metrics
}

// Maintenance purges records older than the retention window and
// recomputes every type's aggregates from the surviving records.
func (s *BoltStore) Maintenance() (int, error) {
	cutoff := s.now().AddDate(0, 0, -s.windowDays)
	purged := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		aggregates := tx.Bucket(bucketAggregates)

		return records.ForEachBucket(func(name []byte) error {
			typeBucket := records.Bucket(name)

			var stale [][]byte
			var survivors []types.LearningRecord
			err := typeBucket.ForEach(func(k, v []byte) error {
				var rec types.LearningRecord
				if err := json.Unmarshal(v, &rec); err != nil {
					// Unreadable records are purged with the stale ones
					stale = append(stale, append([]byte(nil), k...))
					return nil
				}
				if rec.Timestamp.Before(cutoff) {
					stale = append(stale, append([]byte(nil), k...))
					return nil
				}
				survivors = append(survivors, rec)
				return nil
			})
			if err != nil {
				return err
			}

			for _, k := range stale {
				if err := typeBucket.Delete(k); err != nil {
					return fmt.Errorf("failed to purge record: %w", err)
				}
			}
			purged += len(stale)

			taskType := types.TaskType(name)
			if len(survivors) == 0 {
				if err := aggregates.Delete(name); err != nil {
					return fmt.Errorf("failed to clear aggregates: %w", err)
				}
				return nil
			}

			metrics := recompute(taskType, survivors)
			metrics.LastUpdated = s.now()
			data, err := json.Marshal(metrics)
			if err != nil {
				return fmt.Errorf("failed to marshal aggregates: %w", err)
			}
			return aggregates.Put(name, data)
		})
	})
	if err != nil {
		return 0, fmt.Errorf("learning maintenance failed: %w", err)
	}

	if purged > 0 {
		log.WithComponent("learning").Info().
			Int("purged", purged).
			Int("window_days", s.windowDays).
			Msg("purged expired learning records")
	}
	return purged, nil
}

func (s *BoltStore) loadMetrics(tx *bolt.Tx, taskType types.TaskType) *types.LearningMetrics {
	data := tx.Bucket(bucketAggregates).Get([]byte(taskType))
	if data != nil {
		var m types.LearningMetrics
		if err := json.Unmarshal(data, &m); err == nil {
			return &m
		}
	}
	return &types.LearningMetrics{TaskType: taskType}
}

func (s *BoltStore) putMetrics(tx *bolt.Tx, m *types.LearningMetrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal aggregates: %w", err)
	}
	return tx.Bucket(bucketAggregates).Put([]byte(m.TaskType), data)
}

// applyRecord folds one record into the aggregates online.
// Welford: n'=n+1, mean'=mean+(x-mean)/n',
// variance'=(variance*n+(x-mean)(x-mean'))/n'.
func applyRecord(m *types.LearningMetrics, rec types.LearningRecord) {
	n := float64(m.TotalCount)
	x := rec.DurationMS

	delta := x - m.AvgDurationMS
	newMean := m.AvgDurationMS + delta/(n+1)
	delta2 := x - newMean
	m.DurationVariance = (m.DurationVariance*n + delta*delta2) / (n + 1)
	m.AvgDurationMS = newMean
	m.TotalCount++

	if rec.Outcome == OutcomeSuccess {
		m.SuccessCount++
	} else {
		m.FailureCount++
	}
	if rec.RetryCount > 0 {
		m.RetryTotal++
		if rec.RetrySucceeded {
			m.RetrySuccess++
		}
	}
	if rec.SLABreached {
		m.SLABreachCount++
	}
}

// recompute rebuilds aggregates from scratch with a two-pass mean and
// population variance.
func recompute(taskType types.TaskType, records []types.LearningRecord) *types.LearningMetrics {
	m := &types.LearningMetrics{TaskType: taskType}

	sum := 0.0
	for _, rec := range records {
		sum += rec.DurationMS
		m.TotalCount++
		if rec.Outcome == OutcomeSuccess {
			m.SuccessCount++
		} else {
			m.FailureCount++
		}
		if rec.RetryCount > 0 {
			m.RetryTotal++
			if rec.RetrySucceeded {
				m.RetrySuccess++
			}
		}
		if rec.SLABreached {
			m.SLABreachCount++
		}
	}
	m.AvgDurationMS = sum / float64(len(records))

	variance := 0.0
	for _, rec := range records {
		d := rec.DurationMS - m.AvgDurationMS
		variance += d * d
	}
	m.DurationVariance = variance / float64(len(records))
	return m
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
