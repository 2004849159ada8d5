package domain

import "fmt"

// RuleError describes why a set of cards or an action breaks a game rule.
// Reason is human readable and safe to show to players.
type RuleError struct {
	Reason string
}

func (e *RuleError) Error() string { return e.Reason }

func ruleErrorf(format string, args ...any) error {
	return &RuleError{Reason: fmt.Sprintf(format, args...)}
}
