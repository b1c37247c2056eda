// Package history persists scenario runs to a local SQLite database so the
// CLI and dashboard can list past runs and outcome totals.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fwe/internal/run"
	"fwe/internal/scenario"
	"fwe/internal/transport"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type contextKey struct{}

// Store manages the run history database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
	logger *zap.Logger
	now    func() time.Time
}

// Open creates or opens a history store at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under sweeps.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		dbPath: path,
		logger: logger,
		now:    time.Now,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		source TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		request_json TEXT NOT NULL,
		outcome TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL,
		kpis_json TEXT,
		diagnostics_json TEXT,
		notes_json TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists a resolved run outcome and returns the stored record.
func (s *Store) Record(ctx context.Context, source Source, endpoint string, o run.Outcome) (Record, error) {
	rec := Record{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
		Source:    source,
		Endpoint:  endpoint,
		Request:   o.Request,
		Outcome:   ClassifyOutcome(o.Err),
		Elapsed:   o.Elapsed,
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
		var te *transport.Error
		if errors.As(o.Err, &te) {
			rec.Status = te.Status
		}
	} else {
		rec.KPIs = o.Response.KPIs
		rec.Diagnostics = o.Response.Diagnostics
		rec.Notes = o.Response.Notes
	}

	reqJSON, err := json.Marshal(o.Request)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode request: %w", err)
	}
	kpis, err := marshalNullable(rec.KPIs)
	if err != nil {
		return Record{}, err
	}
	diag, err := marshalNullable(rec.Diagnostics)
	if err != nil {
		return Record{}, err
	}
	notes, err := marshalNullable(rec.Notes)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, source, endpoint, request_json, outcome, status, elapsed_ms, kpis_json, diagnostics_json, notes_json, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixMilli(), string(rec.Source), rec.Endpoint, string(reqJSON),
		string(rec.Outcome), rec.Status, rec.Elapsed.Milliseconds(), kpis, diag, notes, rec.Error)
	if err != nil {
		return Record{}, fmt.Errorf("failed to record run: %w", err)
	}

	s.logger.Debug("run recorded",
		zap.String("id", rec.ID),
		zap.String("source", string(rec.Source)),
		zap.String("outcome", string(rec.Outcome)))
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, source, endpoint, request_json, outcome, status, elapsed_ms, kpis_json, diagnostics_json, notes_json, error
		FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                     Record
			createdMS, elapsedMS    int64
			source, outcome, reqRaw string
			kpis, diag, notes, msg  sql.NullString
		)
		if err := rows.Scan(&rec.ID, &createdMS, &source, &rec.Endpoint, &reqRaw, &outcome,
			&rec.Status, &elapsedMS, &kpis, &diag, &notes, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Timestamp = time.UnixMilli(createdMS).UTC()
		rec.Source = Source(source)
		rec.Outcome = Outcome(outcome)
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		rec.Error = msg.String

		req, err := scenario.DecodeRequest([]byte(reqRaw))
		if err != nil {
			s.logger.Warn("skipping run with unreadable request", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		rec.Request = req

		if err := unmarshalNullable(kpis, &rec.KPIs); err != nil {
			return nil, err
		}
		if err := unmarshalNullable(diag, &rec.Diagnostics); err != nil {
			return nil, err
		}
		if err := unmarshalNullable(notes, &rec.Notes); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats returns aggregate counters over all recorded runs.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		ByOutcome: make(map[Outcome]int),
		BySource:  make(map[Source]int),
	}

	var mean sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), AVG(elapsed_ms) FROM runs`).Scan(&stats.Total, &mean); err != nil {
		return Stats{}, fmt.Errorf("failed to count runs: %w", err)
	}
	if mean.Valid {
		stats.MeanElapsed = time.Duration(mean.Float64 * float64(time.Millisecond))
	}

	if err := s.countBy(ctx, "outcome", func(k string, n int) { stats.ByOutcome[Outcome(k)] = n }); err != nil {
		return Stats{}, err
	}
	if err := s.countBy(ctx, "source", func(k string, n int) { stats.BySource[Source(k)] = n }); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (s *Store) countBy(ctx context.Context, column string, add func(string, int)) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+column+`, COUNT(*) FROM runs GROUP BY `+column)
	if err != nil {
		return fmt.Errorf("failed to group runs by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		add(key, n)
	}
	return rows.Err()
}

func marshalNullable(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case map[string]float64:
		if x == nil {
			return sql.NullString{}, nil
		}
	case []string:
		if x == nil {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode run field: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalNullable(ns sql.NullString, dst any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(ns.String), dst); err != nil {
		return fmt.Errorf("failed to decode run field: %w", err)
	}
	return nil
}

// NewContext returns a new context carrying the store.
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext retrieves the store from the context, or nil.
func FromContext(ctx context.Context) *Store {
	s, _ := ctx.Value(contextKey{}).(*Store)
	return s
}
