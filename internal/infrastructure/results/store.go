package results

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"dcbench/internal/core/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result is one persisted benchmark run.
type Result struct {
	ID               string    `json:"id"`
	PeerID           string    `json:"peer_id"`
	Role             string    `json:"role"`
	DurationSeconds  float64   `json:"duration_seconds"`
	BytesSent        int64     `json:"bytes_sent"`
	BytesReceived    int64     `json:"bytes_received"`
	MeanSentKBps     float64   `json:"mean_sent_kbps"`
	MeanReceivedKBps float64   `json:"mean_received_kbps"`
	RTTMillis        float64   `json:"rtt_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store persists run results in a local sqlite file so consecutive runs
// can be compared.
type Store struct {
	db      *sql.DB
	maxRuns int
	logger  *zap.SugaredLogger
}

func Open(dbPath string, maxRuns int, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// modernc.org/sqlite requires explicit PRAGMAs (not query-string params)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db, maxRuns: maxRuns, logger: logger}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		peer_id TEXT NOT NULL,
		role TEXT NOT NULL,
		duration_seconds REAL NOT NULL,
		bytes_sent INTEGER NOT NULL,
		bytes_received INTEGER NOT NULL,
		mean_sent_kbps REAL NOT NULL,
		mean_received_kbps REAL NOT NULL,
		rtt_ms REAL NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`)
	return err
}

// SaveSummary persists one run and trims old rows past the configured
// maximum.
func (s *Store) SaveSummary(summary services.RunSummary) (Result, error) {
	res := Result{
		ID:               uuid.NewString(),
		PeerID:           string(summary.Peer),
		Role:             string(summary.Role),
		DurationSeconds:  summary.Elapsed.Seconds(),
		BytesSent:        int64(summary.TotalSentBytes),
		BytesReceived:    int64(summary.TotalRecvBytes),
		MeanSentKBps:     summary.MeanSentKBps,
		MeanReceivedKBps: summary.MeanReceivedKBps,
		RTTMillis:        float64(summary.RTT.Microseconds()) / 1000,
		CreatedAt:        time.Now().UTC(),
	}

	_, err := s.db.Exec(`INSERT INTO runs
		(id, peer_id, role, duration_seconds, bytes_sent, bytes_received,
		 mean_sent_kbps, mean_received_kbps, rtt_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.PeerID, res.Role, res.DurationSeconds,
		res.BytesSent, res.BytesReceived,
		res.MeanSentKBps, res.MeanReceivedKBps, res.RTTMillis, res.CreatedAt)
	if err != nil {
		return Result{}, fmt.Errorf("insert run: %w", err)
	}

	if s.maxRuns > 0 {
		s.trim()
	}
	return res, nil
}

func (s *Store) trim() {
	_, err := s.db.Exec(`DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY created_at DESC LIMIT ?)`, s.maxRuns)
	if err != nil {
		s.logger.Warnw("trimming old runs failed", "error", err)
	}
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) ([]Result, error) {
	rows, err := s.db.Query(`SELECT id, peer_id, role, duration_seconds,
		bytes_sent, bytes_received, mean_sent_kbps, mean_received_kbps,
		rtt_ms, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.PeerID, &r.Role, &r.DurationSeconds,
			&r.BytesSent, &r.BytesReceived, &r.MeanSentKBps,
			&r.MeanReceivedKBps, &r.RTTMillis, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
