package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"pontinhos/internal/ports"
)

// RpcRoundHistory is the Nakama RPC id that lists the settled rounds of a room.
const RpcRoundHistory = "round_history"

// RoundHistoryRequest is the payload of RpcRoundHistory.
type RoundHistoryRequest struct {
	RoomID string `json:"room_id"`
}

// RoundHistoryEntry is one settled round in a RoundHistoryResponse.
type RoundHistoryEntry struct {
	Round    int            `json:"round"`
	WentOut  string         `json:"went_out"`
	Winner   string         `json:"winner"`
	Scenario string         `json:"scenario"`
	Points   map[string]int `json:"points"`
	Scores   map[string]int `json:"scores"`
	Finished bool           `json:"finished"`
	EndedAt  time.Time      `json:"ended_at"`
}

// RoundHistoryResponse lists rounds in round order.
type RoundHistoryResponse struct {
	RoomID string              `json:"room_id"`
	Rounds []RoundHistoryEntry `json:"rounds"`
}

var errMissingRoomID = errors.New("room_id is required")

func rpcRoundHistory(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	resp, err := roundHistory(ctx, NewNakamaRoundLedger(nk), payload)
	if err != nil {
		if errors.Is(err, errMissingRoomID) {
			return "", runtime.NewError(err.Error(), 3) // INVALID_ARGUMENT
		}
		logger.Error("round_history: %v", err)
		return "", err
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func roundHistory(ctx context.Context, ledger ports.RoundLedger, payload string) (RoundHistoryResponse, error) {
	var req RoundHistoryRequest
	if strings.TrimSpace(payload) != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return RoundHistoryResponse{}, errMissingRoomID
		}
	}
	if req.RoomID == "" {
		return RoundHistoryResponse{}, errMissingRoomID
	}
	records, err := ledger.ListRounds(ctx, req.RoomID)
	if err != nil {
		return RoundHistoryResponse{}, err
	}
	resp := RoundHistoryResponse{RoomID: req.RoomID, Rounds: make([]RoundHistoryEntry, 0, len(records))}
	for _, r := range records {
		resp.Rounds = append(resp.Rounds, RoundHistoryEntry{
			Round:    r.Round,
			WentOut:  r.WentOut,
			Winner:   r.Winner,
			Scenario: r.Scenario,
			Points:   r.Points,
			Scores:   r.Scores,
			Finished: r.Finished,
			EndedAt:  r.EndedAt,
		})
	}
	return resp, nil
}
