package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"
)

type BotIdentity struct {
	DeviceID    string `json:"device_id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Difficulty  string `json:"difficulty"` // "simple", "knocker"
	AvatarIndex int    `json:"avatar_index"`
}

// Roster is the pool of bot identities available to fill seats.
type Roster struct {
	mu         sync.RWMutex
	identities []BotIdentity
	byID       map[string]BotIdentity
}

// NewRoster builds a roster from identities. Entries without a user id are indexed once
// Provision assigns one.
func NewRoster(identities []BotIdentity) *Roster {
	r := &Roster{
		identities: append([]BotIdentity(nil), identities...),
		byID:       make(map[string]BotIdentity),
	}
	for _, id := range r.identities {
		if id.UserID != "" {
			r.byID[id.UserID] = id
		}
	}
	return r
}

// LoadRoster reads bot profiles from a JSON file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bot identities: %w", err)
	}
	var identities []BotIdentity
	if err := json.Unmarshal(data, &identities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot identities: %w", err)
	}
	return NewRoster(identities), nil
}

// Provision ensures that bot accounts exist in the Nakama database and carry is_bot metadata.
func (r *Roster) Provision(ctx context.Context, nk runtime.NakamaModule, logger runtime.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.identities {
		identity := &r.identities[i]
		if identity.DeviceID == "" {
			continue
		}
		userID, username, _, err := nk.AuthenticateDevice(ctx, identity.DeviceID, identity.Username, true)
		if err != nil {
			logger.Error("Provision: failed to authenticate bot %s: %v", identity.Username, err)
			continue
		}
		identity.UserID = userID
		identity.Username = username

		metadata := map[string]interface{}{
			"is_bot":       true,
			"difficulty":   identity.Difficulty,
			"avatar_index": identity.AvatarIndex,
		}
		if err := nk.AccountUpdateId(ctx, userID, identity.Username, metadata, identity.DisplayName, "", "", "", ""); err != nil {
			logger.Warn("Provision: failed to update bot account %s: %v", userID, err)
		}
		r.byID[userID] = *identity
		logger.Info("Provision: bot %s (%s) is ready, difficulty %s", identity.DisplayName, userID, identity.Difficulty)
	}
}

// Identity returns an identity by index (mod pool size). An empty roster yields synthetic
// identities.
func (r *Roster) Identity(index int) BotIdentity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.identities) == 0 {
		return BotIdentity{
			UserID:      fmt.Sprintf("bot-%d", index),
			DisplayName: fmt.Sprintf("AI Player %d", index),
			Difficulty:  "simple",
		}
	}
	id := r.identities[index%len(r.identities)]
	if id.UserID == "" {
		id.UserID = fmt.Sprintf("bot-%d", index)
	}
	return id
}

// Lookup returns the identity of a provisioned bot.
func (r *Roster) Lookup(userID string) (BotIdentity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byID[userID]
	return id, ok
}

// IsBot reports whether userID belongs to the roster.
func (r *Roster) IsBot(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Size returns the number of configured identities.
func (r *Roster) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}
