package doppelkopf

import (
	"fmt"
	"math/rand"
)

type Suit int

const (
	Clubs Suit = iota
	Spades
	Hearts
	Diamonds
)

var suitString = map[Suit]string{
	Clubs:    "clubs",
	Spades:   "spades",
	Hearts:   "hearts",
	Diamonds: "diamonds",
}

var suitFromString = map[string]Suit{
	"clubs":    Clubs,
	"spades":   Spades,
	"hearts":   Hearts,
	"diamonds": Diamonds,
}

func (s Suit) String() string {
	return suitString[s]
}

func (s Suit) MarshalText() ([]byte, error) {
	name, ok := suitString[s]
	if !ok {
		return nil, fmt.Errorf("unknown suit %d", int(s))
	}
	return []byte(name), nil
}

func (s *Suit) UnmarshalText(text []byte) error {
	suit, ok := suitFromString[string(text)]
	if !ok {
		return fmt.Errorf("unknown suit %q", string(text))
	}
	*s = suit
	return nil
}

type Rank int

const (
	Nine Rank = iota
	Jack
	Queen
	King
	Ten
	Ace
)

var rankString = map[Rank]string{
	Nine:  "9",
	Jack:  "J",
	Queen: "Q",
	King:  "K",
	Ten:   "10",
	Ace:   "A",
}

var rankFromString = map[string]Rank{
	"9":  Nine,
	"J":  Jack,
	"Q":  Queen,
	"K":  King,
	"10": Ten,
	"A":  Ace,
}

func (r Rank) String() string {
	return rankString[r]
}

func (r Rank) MarshalText() ([]byte, error) {
	name, ok := rankString[r]
	if !ok {
		return nil, fmt.Errorf("unknown rank %d", int(r))
	}
	return []byte(name), nil
}

func (r *Rank) UnmarshalText(text []byte) error {
	rank, ok := rankFromString[string(text)]
	if !ok {
		return fmt.Errorf("unknown rank %q", string(text))
	}
	*r = rank
	return nil
}

// Card is an immutable value type; equality is by (suit, rank).
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", c.Rank.String(), c.Suit.String())
}

type Deck struct {
	Cards []Card `json:"cards"`
}

// NewDeck builds the full card set for the given settings:
// 40 cards without nines, 48 with nines, plus one duplicate diamond
// queen when playing with the sheep.
func NewDeck(settings GameSettings) *Deck {
	deck := make([]Card, 0, 49)
	suits := []Suit{Clubs, Spades, Hearts, Diamonds}
	ranks := []Rank{Nine, Jack, Queen, King, Ten, Ace}

	for _, suit := range suits {
		for _, rank := range ranks {
			if rank == Nine && !settings.PlayWithNine {
				continue
			}
			deck = append(deck, Card{suit, rank})
		}
	}

	if settings.WithSheep {
		deck = append(deck, Card{Diamonds, Queen})
	}

	return &Deck{deck}
}

func (d Deck) Count() int {
	return len(d.Cards)
}

func (d *Deck) Shuffle() {
	rand.Shuffle(d.Count(), func(i, j int) {
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	})
}
