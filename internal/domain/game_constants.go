package domain

import "time"

// Client -> server opcodes.
const (
	OpCodeStartGame       int64 = 1
	OpCodeDrawStock       int64 = 2
	OpCodeDrawDiscard     int64 = 3
	OpCodeDiscard         int64 = 4
	OpCodeLayMelds        int64 = 5
	OpCodeLayoff          int64 = 6
	OpCodeGoOut           int64 = 7
	OpCodeKnock           int64 = 8
	OpCodeKnockGoOut      int64 = 9
	OpCodeGiveUpKnock     int64 = 10
	OpCodeRequestNewRound int64 = 11
)

// Server -> client opcodes.
const (
	OpCodeStateSnapshot int64 = 101
	OpCodeGameEvent     int64 = 102
	OpCodeGameError     int64 = 103
)

const (
	DefaultHandSize         = 9
	DefaultMaxHandSize      = 10
	DefaultEliminationScore = 100
	DefaultKnockTimeout     = 40 * time.Second
	DefaultMinPlayers       = 2
	DefaultMaxPlayers       = 4
)

// Rules holds the tunable parameters of a room.
type Rules struct {
	HandSize         int           `json:"handSize"`
	MaxHandSize      int           `json:"maxHandSize"`
	EliminationScore int           `json:"eliminationScore"`
	KnockTimeout     time.Duration `json:"knockTimeout"`
	AllowLayoff      bool          `json:"allowLayoff"`
	MinPlayers       int           `json:"minPlayers"`
	MaxPlayers       int           `json:"maxPlayers"`
}

// DefaultRules returns the standard 100 Pontinhos table rules.
func DefaultRules() Rules {
	return Rules{
		HandSize:         DefaultHandSize,
		MaxHandSize:      DefaultMaxHandSize,
		EliminationScore: DefaultEliminationScore,
		KnockTimeout:     DefaultKnockTimeout,
		AllowLayoff:      true,
		MinPlayers:       DefaultMinPlayers,
		MaxPlayers:       DefaultMaxPlayers,
	}
}

// WithDefaults fills zero fields from DefaultRules. AllowLayoff is taken as given.
func (r Rules) WithDefaults() Rules {
	d := DefaultRules()
	if r.HandSize <= 0 {
		r.HandSize = d.HandSize
	}
	if r.MaxHandSize <= 0 {
		r.MaxHandSize = d.MaxHandSize
	}
	if r.EliminationScore <= 0 {
		r.EliminationScore = d.EliminationScore
	}
	if r.KnockTimeout <= 0 {
		r.KnockTimeout = d.KnockTimeout
	}
	if r.MinPlayers <= 0 {
		r.MinPlayers = d.MinPlayers
	}
	if r.MaxPlayers <= 0 {
		r.MaxPlayers = d.MaxPlayers
	}
	return r
}
