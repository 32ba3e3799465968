// Package transcript persists finished runs to SQLite so they survive the
// process and can be inspected later.
package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/harun/reagent/pkg/events"
	"github.com/harun/reagent/pkg/memory"
	"github.com/harun/reagent/pkg/model"
)

// ErrNotFound is returned when no transcript exists for an ID.
var ErrNotFound = errors.New("transcript not found")

// Record is one persisted run.
type Record struct {
	ID        string           `json:"id"`
	Task      string           `json:"task"`
	Outcome   string           `json:"outcome"`
	Output    interface{}      `json:"output,omitempty"`
	Error     string           `json:"error,omitempty"`
	Steps     []memory.Step    `json:"steps"`
	Usage     model.TokenUsage `json:"usage"`
	Duration  time.Duration    `json:"duration"`
	CreatedAt time.Time        `json:"created_at"`
}

// Summary is a Record without its step log, for listings.
type Summary struct {
	ID        string           `json:"id"`
	Task      string           `json:"task"`
	Outcome   string           `json:"outcome"`
	Usage     model.TokenUsage `json:"usage"`
	Duration  time.Duration    `json:"duration"`
	CreatedAt time.Time        `json:"created_at"`
}

// Config configures a Store.
type Config struct {
	// Path is the SQLite database file. Use ":memory:" for an in-memory store.
	Path   string
	Logger zerolog.Logger
}

// Store persists run transcripts in a single SQLite table.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore opens the database and prepares the schema.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		logger: cfg.Logger.With().Str("component", "transcript").Logger(),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", cfg.Path).Msg("Transcript store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			outcome TEXT NOT NULL,
			output TEXT,
			error TEXT,
			steps TEXT NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
		CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists a record and returns its ID. A record without an ID gets a
// generated one.
func (s *Store) Save(ctx context.Context, rec Record) (string, error) {
	id := rec.ID
	if id == "" {
		generated, err := gonanoid.New()
		if err != nil {
			return "", fmt.Errorf("failed to generate run id: %w", err)
		}
		id = generated
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	stepsJSON, err := encodeSteps(rec.Steps)
	if err != nil {
		return "", fmt.Errorf("failed to encode steps: %w", err)
	}

	var outputJSON []byte
	if rec.Output != nil {
		outputJSON, err = json.Marshal(rec.Output)
		if err != nil {
			return "", fmt.Errorf("failed to encode output: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, task, outcome, output, error, steps, input_tokens, output_tokens, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Task, rec.Outcome, nullableString(outputJSON), nullableText(rec.Error),
		string(stepsJSON), rec.Usage.InputTokens, rec.Usage.OutputTokens,
		rec.Duration.Milliseconds(), createdAt.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	s.logger.Debug().Str("run_id", id).Str("outcome", rec.Outcome).Msg("Transcript saved")
	return id, nil
}

// Get loads one record with its full step log.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task, outcome, output, error, steps, input_tokens, output_tokens, duration_ms, created_at
		FROM runs WHERE id = ?`, id)

	var rec Record
	var output, errText sql.NullString
	var stepsJSON string
	var durationMS, createdAt int64

	err := row.Scan(&rec.ID, &rec.Task, &rec.Outcome, &output, &errText, &stepsJSON,
		&rec.Usage.InputTokens, &rec.Usage.OutputTokens, &durationMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	if output.Valid {
		if err := json.Unmarshal([]byte(output.String), &rec.Output); err != nil {
			return nil, fmt.Errorf("failed to decode output: %w", err)
		}
	}
	rec.Error = errText.String
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.CreatedAt = time.Unix(createdAt, 0)

	rec.Steps, err = decodeSteps([]byte(stepsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to decode steps: %w", err)
	}

	return &rec, nil
}

// List returns run summaries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task, outcome, input_tokens, output_tokens, duration_ms, created_at
		FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var durationMS, createdAt int64
		if err := rows.Scan(&sum.ID, &sum.Task, &sum.Outcome,
			&sum.Usage.InputTokens, &sum.Usage.OutputTokens, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		sum.Duration = time.Duration(durationMS) * time.Millisecond
		sum.CreatedAt = time.Unix(createdAt, 0)
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// Prune deletes runs created before the retention cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, retain time.Duration) (int, error) {
	cutoff := time.Now().Add(-retain).Unix()

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune transcripts: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Msg("Pruned old transcripts")
	}
	return int(removed), nil
}

// Attach subscribes the store to run completions so every finished task is
// persisted automatically. Save failures are logged, never propagated; the
// emitter runs handlers on the run's goroutine.
func (s *Store) Attach(emitter *events.Emitter) {
	emitter.On(events.TaskComplete, func(payload interface{}) {
		event, ok := payload.(events.TaskCompleteEvent)
		if !ok {
			return
		}
		_, err := s.Save(context.Background(), Record{
			Task:     event.Task,
			Outcome:  "success",
			Output:   event.Output,
			Steps:    event.Steps,
			Usage:    event.Usage,
			Duration: event.Duration,
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to persist completed run")
		}
	})
}

func nullableText(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func nullableString(v []byte) interface{} {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}
