package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"pontinhos/internal/domain"
	"pontinhos/internal/ports"
)

// ledgerReadBatch is how many round keys ListRounds asks for per storage read.
const ledgerReadBatch = 16

type storedRound struct {
	Result  domain.RoundResult `json:"result"`
	EndedAt time.Time          `json:"endedAt"`
}

func roundObjectKey(roomID string, round int) string {
	return fmt.Sprintf("%s:%04d", roomID, round)
}

// NakamaRoundLedger keeps settled rounds as system-owned storage objects, one per round.
type NakamaRoundLedger struct {
	nk storageModule
}

// NewNakamaRoundLedger creates a ledger over nk.
func NewNakamaRoundLedger(nk storageModule) *NakamaRoundLedger {
	return &NakamaRoundLedger{nk: nk}
}

func (l *NakamaRoundLedger) RecordRound(ctx context.Context, rec ports.RoundRecord) error {
	raw, err := json.Marshal(storedRound{Result: rec.RoundResult, EndedAt: rec.EndedAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode round %d of room %s: %w", rec.Round, rec.RoomID, err)
	}
	writes := []*runtime.StorageWrite{{
		Collection:      roundCollection,
		Key:             roundObjectKey(rec.RoomID, rec.Round),
		Value:           string(raw),
		Version:         "*",
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}}
	if _, _, err := l.nk.MultiUpdate(ctx, nil, writes, nil, nil, false); err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			// already recorded
			return nil
		}
		return fmt.Errorf("record round %d of room %s: %w", rec.Round, rec.RoomID, err)
	}
	return nil
}

// ListRounds reads round keys in batches and stops at the first batch with no records.
func (l *NakamaRoundLedger) ListRounds(ctx context.Context, roomID string) ([]ports.RoundRecord, error) {
	var out []ports.RoundRecord
	for first := 1; ; first += ledgerReadBatch {
		reads := make([]*runtime.StorageRead, 0, ledgerReadBatch)
		for round := first; round < first+ledgerReadBatch; round++ {
			reads = append(reads, &runtime.StorageRead{Collection: roundCollection, Key: roundObjectKey(roomID, round)})
		}
		objects, err := l.nk.StorageRead(ctx, reads)
		if err != nil {
			return nil, fmt.Errorf("list rounds of room %s: %w", roomID, err)
		}
		if len(objects) == 0 {
			break
		}
		batch := make(map[string]storedRound, len(objects))
		for _, o := range objects {
			var sr storedRound
			if err := json.Unmarshal([]byte(o.Value), &sr); err != nil {
				return nil, fmt.Errorf("decode %s: %w", o.Key, err)
			}
			batch[o.Key] = sr
		}
		for round := first; round < first+ledgerReadBatch; round++ {
			if sr, ok := batch[roundObjectKey(roomID, round)]; ok {
				out = append(out, ports.RoundRecord{RoundResult: sr.Result, EndedAt: sr.EndedAt})
			}
		}
	}
	return out, nil
}

var _ ports.RoundLedger = (*NakamaRoundLedger)(nil)
