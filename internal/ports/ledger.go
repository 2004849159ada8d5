package ports

import (
	"context"
	"time"

	"pontinhos/internal/domain"
)

// RoundRecord is a settled round as kept in history.
type RoundRecord struct {
	domain.RoundResult
	EndedAt time.Time
}

// RoundLedger keeps the history of settled rounds.
type RoundLedger interface {
	// RecordRound stores a settled round. Recording the same room and round twice is a no-op.
	RecordRound(ctx context.Context, rec RoundRecord) error
	// ListRounds returns the rounds of a room in round order.
	ListRounds(ctx context.Context, roomID string) ([]RoundRecord, error)
}

// PausedRoomIndex lists rooms with an open knock window.
type PausedRoomIndex interface {
	// PausedRooms returns the ids of rooms whose window opened before startedBefore.
	PausedRooms(ctx context.Context, startedBefore time.Time) ([]string, error)
}
