package doppelkopf

// Trump ordering, strongest tier first: jacks, then queens (sheep games
// only), then plain hearts. Jacks and queens sub-order by suit with
// diamonds lowest and spades highest, so the diamond jack is the lowest
// jack and still beats every non-jack trump.
const (
	tierHearts = 1
	tierQueens = 2
	tierJacks  = 3
)

var trumpSuitOrder = map[Suit]int{
	Diamonds: 0,
	Hearts:   1,
	Clubs:    2,
	Spades:   3,
}

// heartsRankOrder ranks plain heart trumps. The queen only occurs here
// in games without the sheep (with the sheep all queens move to the
// queen tier); the nine only occurs when playing with nines.
var heartsRankOrder = map[Rank]int{
	Nine:  0,
	Queen: 1,
	King:  2,
	Ten:   3,
	Ace:   4,
}

// plainRankOrder ranks cards within a non-trump suit.
var plainRankOrder = map[Rank]int{
	Jack:  0,
	Queen: 1,
	King:  2,
	Ten:   3,
	Ace:   4,
}

// IsTrump reports whether a card is trump under the given settings.
// Jacks are always trump, queens only when playing with the sheep,
// and every heart is trump.
func IsTrump(card Card, settings GameSettings) bool {
	if card.Rank == Jack {
		return true
	}
	if settings.WithSheep && card.Rank == Queen {
		return true
	}
	return card.Suit == Hearts
}

// trumpStrength returns a total order over trump cards. Tiers never
// collide because each tier gets its own band.
func trumpStrength(card Card, settings GameSettings) int {
	if card.Rank == Jack {
		return tierJacks<<4 | trumpSuitOrder[card.Suit]
	}
	if settings.WithSheep && card.Rank == Queen {
		return tierQueens<<4 | trumpSuitOrder[card.Suit]
	}
	return tierHearts<<4 | heartsRankOrder[card.Rank]
}

// Compare orders two cards in a trick context: positive means a wins,
// negative means b wins, zero means tied or incomparable. Identical
// trumps (the duplicate sheep queen) compare to zero, so the card
// played first keeps the trick. Cards of different non-trump suits are
// incomparable; the leading-suit rule resolves them, never Compare.
func Compare(a, b Card, settings GameSettings) int {
	aTrump := IsTrump(a, settings)
	bTrump := IsTrump(b, settings)

	if aTrump && bTrump {
		return trumpStrength(a, settings) - trumpStrength(b, settings)
	}
	if aTrump {
		return 1
	}
	if bTrump {
		return -1
	}

	if a.Suit != b.Suit {
		return 0
	}
	return plainRankOrder[a.Rank] - plainRankOrder[b.Rank]
}

// IsLegalPlay checks the follow-suit rule. The opening play of a trick
// is always legal. Otherwise the lead's effective suit (trump counts as
// its own suit) must be followed when the hand holds it; a void hand
// may trump or discard freely.
func IsLegalPlay(card Card, hand []Card, trick []PlayedCard, settings GameSettings) bool {
	if len(trick) == 0 {
		return true
	}

	lead := trick[0].Card
	if IsTrump(lead, settings) {
		for _, held := range hand {
			if IsTrump(held, settings) {
				return IsTrump(card, settings)
			}
		}
		return true
	}

	for _, held := range hand {
		if held.Suit == lead.Suit && !IsTrump(held, settings) {
			return card.Suit == lead.Suit && !IsTrump(card, settings)
		}
	}
	return true
}

// ResolveTrickWinner folds the trick left to right keeping the best
// play so far; a later card takes the trick only by strictly beating
// the current best. Deterministic for a given trick and settings.
func ResolveTrickWinner(trick []PlayedCard, settings GameSettings) PlayedCard {
	winner := trick[0]
	for _, play := range trick[1:] {
		if Compare(play.Card, winner.Card, settings) > 0 {
			winner = play
		}
	}
	return winner
}
