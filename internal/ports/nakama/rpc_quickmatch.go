package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// QuickMatchResponse is the payload returned to clients when requesting a lobby-capable match.
type QuickMatchResponse struct {
	MatchID string `json:"match_id"`
	IsNew   bool   `json:"is_new"`
}

// quickMatchQuery finds open lobbies of our game, including tables whose last game finished.
var quickMatchQuery = fmt.Sprintf("+label.%s:T +label.%s:%s", labelKeyOpen, labelKeyGame, GameLabel)

// matchFinder is the part of runtime.NakamaModule quick match needs.
type matchFinder interface {
	MatchList(ctx context.Context, limit int, authoritative bool, label string, minSize, maxSize *int, query string) ([]*api.Match, error)
	MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error)
}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	if err := initializer.RegisterRpc(RpcQuickMatch, rpcQuickMatch); err != nil {
		return err
	}
	return initializer.RegisterRpc(RpcRoundHistory, rpcRoundHistory)
}

func rpcQuickMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	resp, err := quickMatch(ctx, logger, nk)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func quickMatch(ctx context.Context, logger runtime.Logger, nk matchFinder) (QuickMatchResponse, error) {
	limit := 10
	authoritative := true

	minSize := 1
	maxSize := maxSeats - 1

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, quickMatchQuery)
	if err != nil {
		logger.Error("MatchList error: %v", err)
		return QuickMatchResponse{}, err
	}
	if len(matches) > 0 {
		return QuickMatchResponse{MatchID: matches[0].MatchId, IsNew: false}, nil
	}

	// Seat and owner assignment happens in MatchJoin.
	matchID, err := nk.MatchCreate(ctx, MatchNamePontinhos, map[string]interface{}{})
	if err != nil {
		logger.Error("MatchCreate error: %v", err)
		return QuickMatchResponse{}, err
	}
	return QuickMatchResponse{MatchID: matchID, IsNew: true}, nil
}
