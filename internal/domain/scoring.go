package domain

// CardPoints returns the penalty value of a card left in hand: ace 1, two to nine face value,
// ten and court cards 10.
func CardPoints(c Card) int {
	if c.Rank >= RankTen {
		return 10
	}
	return int(c.Rank)
}

// HandPoints sums CardPoints over a hand.
func HandPoints(hand []Card) int {
	total := 0
	for _, c := range hand {
		total += CardPoints(c)
	}
	return total
}

// DetermineWinner returns the round winner. The player who emptied their hand wins unless
// their cumulative score is already at or above threshold; then the player below threshold
// with the lowest score wins, or the lowest scorer overall when nobody is below it. Ties go
// to the earlier player in order.
func DetermineWinner(wentOut string, order []string, scores map[string]int, threshold int) string {
	if scores[wentOut] < threshold {
		return wentOut
	}
	if id, ok := lowestScore(order, scores, func(score int) bool { return score < threshold }); ok {
		return id
	}
	if id, ok := lowestScore(order, scores, func(int) bool { return true }); ok {
		return id
	}
	return wentOut
}

func lowestScore(order []string, scores map[string]int, eligible func(int) bool) (string, bool) {
	best, found := "", false
	for _, id := range order {
		score := scores[id]
		if !eligible(score) {
			continue
		}
		if !found || score < scores[best] {
			best, found = id, true
		}
	}
	return best, found
}

// RoundResult summarises a finished round.
type RoundResult struct {
	RoomID   string         `json:"roomId"`
	Round    int            `json:"round"`
	WentOut  string         `json:"wentOut"`
	Winner   string         `json:"winner"`
	Scenario string         `json:"scenario"`
	Points   map[string]int `json:"points"`
	Scores   map[string]int `json:"scores"`
	Finished bool           `json:"finished"`
}

// SettleRound ends the round after wentOut emptied their hand: it picks the winner, adds the
// hand points of every other player in the round and marks eliminations. The session moves to
// StatusFinished when at most one seated player remains below the elimination score.
func SettleRound(r *RoomState, wentOut string, scenario ScenarioKind) RoundResult {
	s := r.Session
	threshold := s.Rules.EliminationScore
	winner := DetermineWinner(wentOut, s.PlayerOrder, s.Scores(), threshold)

	res := RoundResult{
		RoomID:   s.RoomID,
		Round:    s.Round,
		WentOut:  wentOut,
		Winner:   winner,
		Scenario: scenario.String(),
		Points:   make(map[string]int, len(s.PlayerOrder)),
	}
	for _, id := range s.PlayerOrder {
		if id == winner {
			res.Points[id] = 0
			continue
		}
		pts := HandPoints(r.Hands[id])
		res.Points[id] = pts
		p := s.Players[id]
		p.Score += pts
		if p.Score >= threshold {
			p.Eliminated = true
		}
	}

	s.WentOut = wentOut
	s.Winner = winner
	s.Pause = nil
	s.SetHasDrawn(false)
	s.Status = StatusRoundEnd
	if len(s.Standing()) <= 1 {
		s.Status = StatusFinished
		res.Finished = true
	}
	res.Scores = s.Scores()
	return res
}
