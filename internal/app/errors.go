package app

import (
	"errors"

	"pontinhos/internal/domain"
)

// IllegalMoveError reports an action that breaks a precondition. Reason is shown to the player.
type IllegalMoveError struct {
	Reason string
}

func (e *IllegalMoveError) Error() string { return "illegal move: " + e.Reason }

func illegal(reason string) *IllegalMoveError { return &IllegalMoveError{Reason: reason} }

var (
	ErrRoomExists         = illegal("room already exists")
	ErrNotPlaying         = illegal("no round in progress")
	ErrRoundNotOver       = illegal("the current round has not ended")
	ErrGameFinished       = illegal("the game is finished")
	ErrNotInRound         = illegal("player is not dealt into this round")
	ErrNotYourTurn        = illegal("not your turn")
	ErrAlreadyDrawn       = illegal("already drew this turn")
	ErrMustDrawFirst      = illegal("draw a card first")
	ErrHandFull           = illegal("hand is full")
	ErrEmptyStock         = illegal("stock is empty")
	ErrEmptyDiscard       = illegal("discard pile is empty")
	ErrCardNotInHand      = illegal("card is not in hand")
	ErrUnknownMeld        = illegal("meld not found")
	ErrInvalidLayoff      = illegal("card does not fit that meld")
	ErrLayoffDisabled     = illegal("laying off is disabled in this room")
	ErrFirstPassPending   = illegal("melds may not be laid before every player has had a turn")
	ErrRoomPaused         = illegal("room is paused by another player's knock")
	ErrNotAllowedInWindow = illegal("drawing and discarding are not allowed during a knock window")
	ErrAlreadyPaused      = illegal("a knock window is already open")
	ErrNotPaused          = illegal("no knock window is open")
	ErrNotKnocker         = illegal("only the knocking player may act")
	ErrKnockOnOwnTurn     = illegal("it is your turn; go out normally")
	ErrPickedCardUnused   = illegal("the picked-up card must be used in a meld")
)

var (
	// ErrTransientConflict wraps a lost optimistic race. Re-read state and retry.
	ErrTransientConflict = errors.New("transient conflict")
	// ErrInvariantViolation means a transition produced an inconsistent room. It is a bug.
	ErrInvariantViolation = errors.New("invariant violation")
)

// IsIllegalMove reports whether err is an IllegalMoveError.
func IsIllegalMove(err error) bool {
	var target *IllegalMoveError
	return errors.As(err, &target)
}

// ReasonOf returns the player-facing reason for err.
func ReasonOf(err error) string {
	var target *IllegalMoveError
	if errors.As(err, &target) {
		return target.Reason
	}
	if errors.Is(err, ErrTransientConflict) {
		return "the table changed, please retry"
	}
	return "internal error"
}

// fromRule converts a rule violation reported by the domain into an illegal move.
func fromRule(err error) error {
	var ruleErr *domain.RuleError
	if errors.As(err, &ruleErr) {
		return illegal(ruleErr.Reason)
	}
	return err
}
