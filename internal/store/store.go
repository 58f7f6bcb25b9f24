package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"DebateArena/internal/debate"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a debate id is unknown
var ErrNotFound = errors.New("debate not found")

const (
	OutcomeConcluded = "concluded"
	OutcomeError     = "error"
)

// Debate is a stored debate with its transcript entries
type Debate struct {
	ID        string           `json:"id"`
	Topic     string           `json:"topic"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   *time.Time       `json:"ended_at,omitempty"`
	Rounds    int              `json:"rounds"`
	Outcome   string           `json:"outcome,omitempty"`
	Messages  []debate.Message `json:"messages,omitempty"`
}

// Store persists debates in SQLite
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps sqlite free of "database is locked"
	db.SetMaxOpenConns(1)

	createDebatesTable := `
	CREATE TABLE IF NOT EXISTS debates (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		rounds INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL DEFAULT ''
	);`

	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		debate_id TEXT NOT NULL,
		persona TEXT NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY(debate_id) REFERENCES debates(id)
	);`

	createHighScoresTable := `
	CREATE TABLE IF NOT EXISTS high_scores (
		game TEXT PRIMARY KEY,
		score INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	);`

	if _, err := db.Exec(createDebatesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create debates table: %w", err)
	}

	if _, err := db.Exec(createMessagesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	if _, err := db.Exec(createHighScoresTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create high_scores table: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDebate inserts or replaces the debate header
func (s *Store) SaveDebate(ctx context.Context, id, topic string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO debates (id, topic, started_at) VALUES (?, ?, ?)",
		id, topic, startedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save debate: %w", err)
	}
	s.logger.Info("debate saved", "debate_id", id)
	return nil
}

// AppendMessage stores one transcript entry
func (s *Store) AppendMessage(ctx context.Context, debateID string, msg debate.Message) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (debate_id, persona, kind, content, timestamp) VALUES (?, ?, ?, ?, ?)",
		debateID, string(msg.Persona), string(msg.Kind), msg.Text, msg.Time.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// FinishDebate records how and when a debate ended
func (s *Store) FinishDebate(ctx context.Context, id string, rounds int, outcome string, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE debates SET ended_at = ?, rounds = ?, outcome = ? WHERE id = ?",
		endedAt.UTC(), rounds, outcome, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish debate: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish debate %s: %w", id, ErrNotFound)
	}
	s.logger.Info("debate finished", "debate_id", id, "rounds", rounds, "outcome", outcome)
	return nil
}

// LoadDebate loads a debate and its transcript entries
func (s *Store) LoadDebate(ctx context.Context, id string) (*Debate, error) {
	d, err := scanDebate(s.db.QueryRowContext(ctx,
		"SELECT id, topic, started_at, ended_at, rounds, outcome FROM debates WHERE id = ?", id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load debate: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT persona, kind, content, timestamp FROM messages WHERE debate_id = ? ORDER BY id",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg debate.Message
		var persona, kind string
		if err := rows.Scan(&persona, &kind, &msg.Text, &msg.Time); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Persona = debate.Persona(persona)
		msg.Kind = debate.Kind(kind)
		d.Messages = append(d.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	return d, nil
}

// ListDebates returns the most recent debates first, without messages
func (s *Store) ListDebates(ctx context.Context, limit int) ([]Debate, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, topic, started_at, ended_at, rounds, outcome FROM debates ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}
	defer rows.Close()

	debates := []Debate{}
	for rows.Next() {
		d, err := scanDebate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debate: %w", err)
		}
		debates = append(debates, *d)
	}
	return debates, rows.Err()
}

// HighScore returns the best score recorded for game, or 0 if none
func (s *Store) HighScore(ctx context.Context, game string) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx, "SELECT score FROM high_scores WHERE game = ?", game).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load high score: %w", err)
	}
	return score, nil
}

// SaveHighScore records score for game unless a higher one is stored
func (s *Store) SaveHighScore(ctx context.Context, game string, score int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO high_scores (game, score, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(game) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at
		WHERE excluded.score > high_scores.score`,
		game, score, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save high score: %w", err)
	}
	s.logger.Info("high score saved", "game", game, "score", score)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDebate(row scanner) (*Debate, error) {
	var d Debate
	var ended sql.NullTime
	if err := row.Scan(&d.ID, &d.Topic, &d.StartedAt, &ended, &d.Rounds, &d.Outcome); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		d.EndedAt = &t
	}
	return &d, nil
}
