package domain

import (
	"fmt"
	"strings"
)

// Rank is a card rank. Values double as the ace-low rank order (Ace=1 .. King=13).
type Rank int8

const (
	RankAce Rank = iota + 1
	RankTwo
	RankThree
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankTen
	RankJack
	RankQueen
	RankKing
)

// AceHigh is the rank order of an ace played above a king.
const AceHigh = 14

var rankSymbols = [...]string{"", "A", "2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K"}

// Valid reports whether r is one of the thirteen ranks.
func (r Rank) Valid() bool { return r >= RankAce && r <= RankKing }

func (r Rank) String() string {
	if !r.Valid() {
		return "?"
	}
	return rankSymbols[r]
}

// Suit is one of the four French suits.
type Suit int8

const (
	Spades Suit = iota + 1
	Hearts
	Diamonds
	Clubs
)

// Suits lists every suit in deck order.
var Suits = [...]Suit{Spades, Hearts, Diamonds, Clubs}

// Color is the colour of a suit.
type Color int8

const (
	Black Color = iota
	Red
)

// Valid reports whether s is one of the four suits.
func (s Suit) Valid() bool { return s >= Spades && s <= Clubs }

// Color returns red for hearts and diamonds, black otherwise.
func (s Suit) Color() Color {
	if s == Hearts || s == Diamonds {
		return Red
	}
	return Black
}

func (s Suit) String() string {
	switch s {
	case Spades:
		return "S"
	case Hearts:
		return "H"
	case Diamonds:
		return "D"
	case Clubs:
		return "C"
	default:
		return "?"
	}
}

// Card is an immutable playing card. Two physical copies of every card exist in a round,
// so containers of cards are multisets.
type Card struct {
	Rank Rank
	Suit Suit
}

// C is a shorthand constructor.
func C(rank Rank, suit Suit) Card { return Card{Rank: rank, Suit: suit} }

// Valid reports whether both rank and suit are in range.
func (c Card) Valid() bool { return c.Rank.Valid() && c.Suit.Valid() }

// String formats the card in its two-character form, e.g. "4S", "TD", "AH".
func (c Card) String() string { return c.Rank.String() + c.Suit.String() }

// MarshalText encodes the card as its two-character form.
func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid card %d/%d", c.Rank, c.Suit)
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a card from its two-character form.
func (c *Card) UnmarshalText(text []byte) error {
	parsed, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard parses "4S", "TD", "10D", "AH" or glyph forms such as "4♠".
func ParseCard(s string) (Card, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Card{}, fmt.Errorf("empty card")
	}

	var suit Suit
	var rankPart string
	switch {
	case strings.HasSuffix(s, "♠"):
		suit, rankPart = Spades, strings.TrimSuffix(s, "♠")
	case strings.HasSuffix(s, "♥"):
		suit, rankPart = Hearts, strings.TrimSuffix(s, "♥")
	case strings.HasSuffix(s, "♦"):
		suit, rankPart = Diamonds, strings.TrimSuffix(s, "♦")
	case strings.HasSuffix(s, "♣"):
		suit, rankPart = Clubs, strings.TrimSuffix(s, "♣")
	default:
		switch s[len(s)-1] {
		case 'S':
			suit = Spades
		case 'H':
			suit = Hearts
		case 'D':
			suit = Diamonds
		case 'C':
			suit = Clubs
		default:
			return Card{}, fmt.Errorf("card %q: unknown suit", s)
		}
		rankPart = s[:len(s)-1]
	}

	if rankPart == "10" {
		rankPart = "T"
	}
	for r := RankAce; r <= RankKing; r++ {
		if rankSymbols[r] == rankPart {
			return Card{Rank: r, Suit: suit}, nil
		}
	}
	return Card{}, fmt.Errorf("card %q: unknown rank", s)
}

// ParseCards parses a whitespace or comma separated list of cards.
func ParseCards(s string) ([]Card, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// FormatCards joins cards with single spaces.
func FormatCards(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// RankOrder returns the ace-low position of a rank, 1..13.
func RankOrder(r Rank) int { return int(r) }
