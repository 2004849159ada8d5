package nakama

import (
	"encoding/json"
	"fmt"

	"pontinhos/internal/app"
	"pontinhos/internal/domain"
)

// DiscardRequest is the payload of OpCodeDiscard.
type DiscardRequest struct {
	Card domain.Card `json:"card"`
}

// LayMeldsRequest is the payload of OpCodeLayMelds.
type LayMeldsRequest struct {
	Melds [][]domain.Card `json:"melds"`
}

// LayoffRequest is the payload of OpCodeLayoff.
type LayoffRequest struct {
	MeldID string      `json:"meldId"`
	Card   domain.Card `json:"card"`
}

// ErrorMessage is sent to a single player with OpCodeGameError.
type ErrorMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SnapshotMessage is a player's view of the match, sent with OpCodeStateSnapshot.
type SnapshotMessage struct {
	Seats     []string  `json:"seats"`
	OwnerSeat int       `json:"ownerSeat"`
	Names     []string  `json:"names"`
	Game      int       `json:"game"`
	Tick      int64     `json:"tick"`
	View      *app.View `json:"view,omitempty"`
}

func decodePayload(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}

// decodeProposal reads an optional go-out proposal. An empty payload lets the server choose.
func decodeProposal(data []byte) (*app.GoOutProposal, error) {
	if len(data) == 0 || string(data) == "{}" || string(data) == "null" {
		return nil, nil
	}
	var p app.GoOutProposal
	if err := decodePayload(data, &p); err != nil {
		return nil, err
	}
	if len(p.Melds) == 0 && p.Discard == nil {
		return nil, nil
	}
	return &p, nil
}
