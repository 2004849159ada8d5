// Package sqlitestore keeps the round history in a SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"pontinhos/internal/ports"
	"pontinhos/internal/ports/sqlitestore/migrations"
)

// Ledger is a ports.RoundLedger backed by SQLite.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger at path and applies migrations. ":memory:" is accepted.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across queries
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) RecordRound(ctx context.Context, rec ports.RoundRecord) error {
	if rec.RoomID == "" {
		return fmt.Errorf("room id is required")
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now().UTC()
	}
	points, err := json.Marshal(rec.Points)
	if err != nil {
		return fmt.Errorf("encode points: %w", err)
	}
	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
INSERT OR IGNORE INTO rounds (
	room_id,
	round,
	went_out,
	winner,
	scenario,
	points_json,
	scores_json,
	finished,
	ended_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		rec.RoomID,
		rec.Round,
		rec.WentOut,
		rec.Winner,
		rec.Scenario,
		string(points),
		string(scores),
		rec.Finished,
		rec.EndedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record round %s/%d: %w", rec.RoomID, rec.Round, err)
	}
	return nil
}

func (l *Ledger) ListRounds(ctx context.Context, roomID string) ([]ports.RoundRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT
	room_id,
	round,
	went_out,
	winner,
	scenario,
	points_json,
	scores_json,
	finished,
	ended_at
FROM rounds
WHERE room_id = ?
ORDER BY round ASC
`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var out []ports.RoundRecord
	for rows.Next() {
		var (
			rec            ports.RoundRecord
			points, scores string
			endedAt        int64
		)
		if err := rows.Scan(&rec.RoomID, &rec.Round, &rec.WentOut, &rec.Winner, &rec.Scenario,
			&points, &scores, &rec.Finished, &endedAt); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		if err := json.Unmarshal([]byte(points), &rec.Points); err != nil {
			return nil, fmt.Errorf("decode points: %w", err)
		}
		if err := json.Unmarshal([]byte(scores), &rec.Scores); err != nil {
			return nil, fmt.Errorf("decode scores: %w", err)
		}
		rec.EndedAt = time.UnixMilli(endedAt).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return out, nil
}

// Wins counts finished games per winner across every room.
func (l *Ledger) Wins(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT winner, COUNT(1) FROM rounds WHERE finished = 1 GROUP BY winner
`)
	if err != nil {
		return nil, fmt.Errorf("count wins: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			winner string
			n      int
		)
		if err := rows.Scan(&winner, &n); err != nil {
			return nil, fmt.Errorf("scan wins: %w", err)
		}
		out[winner] = n
	}
	return out, rows.Err()
}

var _ ports.RoundLedger = (*Ledger)(nil)
