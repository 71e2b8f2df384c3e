package store

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

	_ "modernc.org/sqlite"

	"github.com/ashureev/salesdrill/internal/domain"
	"github.com/ashureev/salesdrill/internal/persona"
)

var _ Repository = (*SQLiteStore)(nil)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writes to keep SQLITE_BUSY rare
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS personas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		persona_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stages (
		stage INTEGER PRIMARY KEY,
		objective TEXT NOT NULL,
		current_state TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		operator TEXT NOT NULL,
		vendor TEXT NOT NULL,
		persona_json TEXT NOT NULL,
		final_stage INTEGER NOT NULL,
		finished INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		ended_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at) WHERE ended_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		stage INTEGER NOT NULL,
		question TEXT NOT NULL,
		inner_activity TEXT NOT NULL,
		response TEXT NOT NULL,
		passed INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// RandomPersona returns a uniformly chosen persona from the pool.
func (s *SQLiteStore) RandomPersona(ctx context.Context) (domain.Persona, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT persona_json FROM personas ORDER BY RANDOM() LIMIT 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persona.ErrNoPersonas
	}
	if err != nil {
		return nil, fmt.Errorf("select persona: %w", err)
	}

	var p domain.Persona
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode persona: %w", err)
	}
	return p, nil
}

// SavePersonas appends personas to the pool in one transaction.
func (s *SQLiteStore) SavePersonas(ctx context.Context, personas []domain.Persona) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().Unix()
	err := withRetry(ctx, "save personas", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, p := range personas {
			raw, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("encode persona: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO personas (persona_json, created_at) VALUES (?, ?)`, string(raw), now); err != nil {
				return fmt.Errorf("insert persona: %w", err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return len(personas), nil
}

// CountPersonas returns the persona pool size.
func (s *SQLiteStore) CountPersonas(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM personas`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count personas: %w", err)
	}
	return n, nil
}

// Stages returns the stored stage definitions.
func (s *SQLiteStore) Stages(ctx context.Context) (*domain.StageSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, objective, current_state FROM stages ORDER BY stage`)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var stages []domain.Stage
	for rows.Next() {
		var st domain.Stage
		if err := rows.Scan(&st.ID, &st.Objective, &st.CurrentState); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}
	return domain.NewStageSet(stages)
}

// ReplaceStages swaps the stage definitions for stages after validating them.
func (s *SQLiteStore) ReplaceStages(ctx context.Context, stages []domain.Stage) error {
	if _, err := domain.NewStageSet(stages); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return withRetry(ctx, "replace stages", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM stages`); err != nil {
			return fmt.Errorf("clear stages: %w", err)
		}
		for _, st := range stages {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO stages (stage, objective, current_state) VALUES (?, ?, ?)`,
				st.ID, st.Objective, st.CurrentState); err != nil {
				return fmt.Errorf("insert stage %d: %w", st.ID, err)
			}
		}
		return tx.Commit()
	})
}

// ArchiveSession creates or updates a session record.
func (s *SQLiteStore) ArchiveSession(ctx context.Context, rec domain.SessionRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := `
	INSERT INTO sessions (session_id, operator, vendor, persona_json, final_stage, finished, started_at, ended_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		final_stage = excluded.final_stage,
		finished = excluded.finished,
		ended_at = COALESCE(excluded.ended_at, sessions.ended_at)`

	var endedAt interface{}
	if rec.EndedAt != nil {
		endedAt = rec.EndedAt.Unix()
	}

	return withRetry(ctx, "archive session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.SessionID, rec.Operator, rec.Vendor, rec.PersonaJSON,
			rec.FinalStage, rec.Finished, rec.StartedAt.Unix(), endedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil
	})
}

// ArchiveTurn records one turn of a session.
func (s *SQLiteStore) ArchiveTurn(ctx context.Context, rec domain.TurnRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := `
	INSERT INTO turns (session_id, seq, stage, question, inner_activity, response, passed, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	return withRetry(ctx, "archive turn", func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.SessionID, rec.Seq, rec.Stage,
			rec.Turn.Question, rec.Turn.InnerActivity, rec.Turn.Response,
			rec.Passed, rec.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
		return nil
	})
}

// GetSession retrieves an archived session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	query := `
		SELECT session_id, operator, vendor, persona_json, final_stage, finished, started_at, ended_at
		FROM sessions WHERE session_id = ?`

	var rec domain.SessionRecord
	var startedAt int64
	var endedAt sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID, &rec.Operator, &rec.Vendor, &rec.PersonaJSON,
		&rec.FinalStage, &rec.Finished, &startedAt, &endedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	rec.StartedAt = time.Unix(startedAt, 0)
	if endedAt.Valid {
		ts := time.Unix(endedAt.Int64, 0)
		rec.EndedAt = &ts
	}
	return &rec, nil
}

// ListTurns returns the archived turns of a session ordered by sequence.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string) ([]domain.TurnRecord, error) {
	query := `
		SELECT seq, stage, question, inner_activity, response, passed, created_at
		FROM turns WHERE session_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.TurnRecord
	for rows.Next() {
		rec := domain.TurnRecord{SessionID: sessionID}
		var createdAt int64
		if err := rows.Scan(&rec.Seq, &rec.Stage,
			&rec.Turn.Question, &rec.Turn.InnerActivity, &rec.Turn.Response,
			&rec.Passed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		turns = append(turns, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// PurgeSessions removes sessions, and their turns, that ended before now
// minus ttl.
func (s *SQLiteStore) PurgeSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	threshold := time.Now().Add(-ttl).Unix()
	var deleted int64
	err := withRetry(ctx, "purge sessions", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM turns WHERE session_id IN (
				SELECT session_id FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?
			)`, threshold); err != nil {
			return fmt.Errorf("delete turns: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		return tx.Commit()
	})
	return deleted, err
}
