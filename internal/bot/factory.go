package bot

import (
	"fmt"
	"strings"
)

// BotLevel selects a strategy.
type BotLevel int

const (
	// BotLevelSimple only plays on its own turn.
	BotLevelSimple BotLevel = iota + 1
	// BotLevelKnocker also knocks out of turn when the discard lets it go out.
	BotLevelKnocker
)

// ParseLevel maps "simple" and "knocker" to their levels. The empty string is simple.
func ParseLevel(s string) (BotLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simple", "easy":
		return BotLevelSimple, nil
	case "knocker", "hard":
		return BotLevelKnocker, nil
	default:
		return 0, fmt.Errorf("unknown bot level %q", s)
	}
}

// NewBrain creates a new AI brain for player self based on the specified level.
func NewBrain(level BotLevel, self string) (Brain, error) {
	switch level {
	case BotLevelSimple:
		return NewSimpleBot(self, false), nil
	case BotLevelKnocker:
		return NewSimpleBot(self, true), nil
	default:
		return nil, fmt.Errorf("unknown bot level: %d", level)
	}
}

// NewAgent builds an agent for identity.
func NewAgent(identity BotIdentity) (*Agent, error) {
	level, err := ParseLevel(identity.Difficulty)
	if err != nil {
		return nil, err
	}
	brain, err := NewBrain(level, identity.UserID)
	if err != nil {
		return nil, err
	}
	return &Agent{ID: identity.UserID, Name: identity.DisplayName, Strategy: brain}, nil
}
