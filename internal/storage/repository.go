package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pipeline-alerts/internal/anomaly"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertAnomalySQL = `INSERT INTO anomalies (
        detected_at,
        category,
        type,
        severity,
        message
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    RETURNING id, created_at;`

	listAnomaliesBetweenSQL = `SELECT
        id,
        detected_at,
        category,
        type,
        severity,
        message,
        created_at
    FROM anomalies
    WHERE detected_at >= $1
      AND detected_at < $2
    ORDER BY detected_at;`

	listRecentAnomaliesSQL = `SELECT
        id,
        detected_at,
        category,
        type,
        severity,
        message,
        created_at
    FROM anomalies
    ORDER BY detected_at DESC
    LIMIT $1;`

	deleteAnomaliesBeforeSQL = `DELETE FROM anomalies WHERE created_at < $1;`

	countAnomaliesSQL = `SELECT COUNT(*) FROM anomalies;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AnomalyStore defines operations for anomaly auditing.
type AnomalyStore interface {
	InsertAnomaly(ctx context.Context, rec AnomalyRecord) (AnomalyRecord, error)
	ListAnomaliesBetween(ctx context.Context, from, to time.Time) ([]AnomalyRecord, error)
	ListRecentAnomalies(ctx context.Context, limit int) ([]AnomalyRecord, error)
	DeleteAnomaliesBefore(ctx context.Context, olderThan time.Time) error
	CountAnomalies(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store provides pgx-backed anomaly persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// unlock best effort
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// InsertAnomaly persists an anomaly emission.
func (s *Store) InsertAnomaly(ctx context.Context, rec AnomalyRecord) (AnomalyRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AnomalyRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAnomalySQL,
		rec.DetectedAt,
		rec.Category,
		rec.Type,
		string(rec.Severity),
		rec.Message,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return AnomalyRecord{}, fmt.Errorf("insert anomaly: %w", err)
	}

	return rec, nil
}

// ListAnomaliesBetween lists anomalies within a detection-time window.
func (s *Store) ListAnomaliesBetween(ctx context.Context, from, to time.Time) ([]AnomalyRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAnomaliesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list anomalies between: %w", queryErr)
	}
	defer rows.Close()

	return scanAnomalyRows(rows, 0)
}

// ListRecentAnomalies lists the most recent anomalies by detection time.
func (s *Store) ListRecentAnomalies(ctx context.Context, limit int) ([]AnomalyRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAnomaliesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent anomalies: %w", queryErr)
	}
	defer rows.Close()

	return scanAnomalyRows(rows, limit)
}

// DeleteAnomaliesBefore removes historical records.
func (s *Store) DeleteAnomaliesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAnomaliesBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete anomalies before: %w", execErr)
	}
	return nil
}

// CountAnomalies counts stored records.
func (s *Store) CountAnomalies(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countAnomaliesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count anomalies: %w", scanErr)
	}
	return count, nil
}

func scanAnomalyRows(rows pgx.Rows, sizeHint int) ([]AnomalyRecord, error) {
	records := make([]AnomalyRecord, 0, sizeHint)
	for rows.Next() {
		var (
			rec      AnomalyRecord
			severity string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.DetectedAt,
			&rec.Category,
			&rec.Type,
			&severity,
			&rec.Message,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Severity = anomaly.Severity(severity)
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}
