package bot

import (
	"context"
	"fmt"

	"pontinhos/internal/app"
	"pontinhos/internal/domain"
)

// Table is the part of the game service an agent plays through.
type Table interface {
	View(ctx context.Context, roomID, viewerID string) (*app.View, error)
	DrawFromStock(ctx context.Context, roomID, playerID string) ([]app.Event, error)
	DrawFromDiscard(ctx context.Context, roomID, playerID string) ([]app.Event, error)
	Discard(ctx context.Context, roomID, playerID string, card domain.Card) ([]app.Event, error)
	LayDownMelds(ctx context.Context, roomID, playerID string, melds [][]domain.Card) ([]app.Event, error)
	LayoffCard(ctx context.Context, roomID, playerID, meldID string, card domain.Card) ([]app.Event, error)
	GoOut(ctx context.Context, roomID, playerID string, proposal *app.GoOutProposal) ([]app.Event, error)
	PauseAndPickupDiscard(ctx context.Context, roomID, playerID string) ([]app.Event, error)
	KnockGoOut(ctx context.Context, roomID, playerID string, proposal *app.GoOutProposal) ([]app.Event, error)
	GiveUpKnock(ctx context.Context, roomID, playerID string) ([]app.Event, error)
}

var _ Table = (*app.Service)(nil)

// Agent represents an autonomous bot player.
type Agent struct {
	ID       string
	Name     string
	Strategy Brain
}

// Play asks the agent to calculate its move from its view of the room.
func (a *Agent) Play(view *app.View) (Move, error) {
	if view == nil || !seated(view, a.ID) {
		return Move{Kind: ActionNone}, nil
	}
	return a.Strategy.CalculateMove(view, a.ID)
}

// Step reads the room, decides and applies one move. A failed knock go-out gives the window
// up so the room does not stay paused until expiry. Events are returned even with an error,
// since a rejected move may still have committed a knock expiry.
func (a *Agent) Step(ctx context.Context, t Table, roomID string) (Move, []app.Event, error) {
	view, err := t.View(ctx, roomID, a.ID)
	if err != nil {
		return Move{}, nil, err
	}
	move, err := a.Play(view)
	if err != nil {
		return move, nil, err
	}
	events, err := a.Apply(ctx, t, roomID, move)
	if err != nil && move.Kind == ActionKnockGoOut && app.IsIllegalMove(err) {
		move = Move{Kind: ActionGiveUpKnock}
		more, giveUpErr := a.Apply(ctx, t, roomID, move)
		events, err = append(events, more...), giveUpErr
	}
	return move, events, err
}

// Apply performs move on behalf of the agent.
func (a *Agent) Apply(ctx context.Context, t Table, roomID string, move Move) ([]app.Event, error) {
	switch move.Kind {
	case ActionNone:
		return nil, nil
	case ActionDrawStock:
		return t.DrawFromStock(ctx, roomID, a.ID)
	case ActionDrawDiscard:
		return t.DrawFromDiscard(ctx, roomID, a.ID)
	case ActionLayMelds:
		return t.LayDownMelds(ctx, roomID, a.ID, move.Melds)
	case ActionLayoff:
		return t.LayoffCard(ctx, roomID, a.ID, move.MeldID, move.Card)
	case ActionDiscard:
		return t.Discard(ctx, roomID, a.ID, move.Card)
	case ActionGoOut:
		return t.GoOut(ctx, roomID, a.ID, nil)
	case ActionKnock:
		return t.PauseAndPickupDiscard(ctx, roomID, a.ID)
	case ActionKnockGoOut:
		return t.KnockGoOut(ctx, roomID, a.ID, nil)
	case ActionGiveUpKnock:
		return t.GiveUpKnock(ctx, roomID, a.ID)
	default:
		return nil, fmt.Errorf("unknown bot action %d", move.Kind)
	}
}

// OnGameEvent notifies the agent of a game event.
func (a *Agent) OnGameEvent(event app.Event) {
	a.Strategy.OnEvent(event)
}

func seated(v *app.View, id string) bool {
	for _, s := range v.Seats {
		if s.ID == id {
			return s.InRound
		}
	}
	return false
}
