package doppelkopf_test

import (
	"testing"

	"doppelkopf-server/internal/doppelkopf"
)

func newLobby(t *testing.T, settings doppelkopf.GameSettings) *doppelkopf.Game {
	t.Helper()
	game := doppelkopf.NewGame(settings, doppelkopf.Player{ID: "a", Name: "Anna"})
	for _, p := range []doppelkopf.Player{
		{ID: "b", Name: "Ben"},
		{ID: "c", Name: "Clara"},
		{ID: "d", Name: "David"},
	} {
		if err := game.Join(p); err != nil {
			t.Fatalf("Join(%s) failed: %v", p.ID, err)
		}
	}
	return game
}

func requireKind(t *testing.T, err error, want doppelkopf.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected an error, got nil")
	}
	kind, ok := doppelkopf.KindOf(err)
	if !ok {
		t.Fatalf("Expected a typed rejection, got %v", err)
	}
	if kind != want {
		t.Fatalf("Expected kind %d, got %d (%v)", want, kind, err)
	}
}

// firstLegal picks the first legal card from a hand against the
// current trick.
func firstLegal(t *testing.T, game *doppelkopf.Game, playerID string, settings doppelkopf.GameSettings) doppelkopf.Card {
	t.Helper()
	state := game.ClientState(playerID)
	for _, c := range state.Hand {
		if doppelkopf.IsLegalPlay(c, state.Hand, state.CurrentTrick, settings) {
			return c
		}
	}
	t.Fatalf("Player %s has no legal play", playerID)
	return doppelkopf.Card{}
}

func TestJoinCapacity(t *testing.T) {
	game := newLobby(t, doppelkopf.GameSettings{})

	err := game.Join(doppelkopf.Player{ID: "e", Name: "Eve"})
	requireKind(t, err, doppelkopf.KindCapacity)

	if len(game.Players()) != 4 {
		t.Errorf("Roster should still have 4 players, got %d", len(game.Players()))
	}
}

func TestJoinIdempotentForSeatedPlayer(t *testing.T) {
	game := newLobby(t, doppelkopf.GameSettings{})

	// Re-joining with a seated id re-affirms membership and refreshes
	// the name without taking a new seat.
	if err := game.Join(doppelkopf.Player{ID: "b", Name: "Benjamin"}); err != nil {
		t.Fatalf("Re-join should be idempotent, got %v", err)
	}

	players := game.Players()
	if len(players) != 4 {
		t.Fatalf("Re-join must not grow the roster, got %d players", len(players))
	}
	if players[1].Name != "Benjamin" || players[1].Seat != 1 {
		t.Errorf("Re-join should refresh the name in place, got %+v", players[1])
	}
}

func TestJoinAfterStartRejected(t *testing.T) {
	game := newLobby(t, doppelkopf.GameSettings{})
	if err := game.Start("a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := game.Join(doppelkopf.Player{ID: "e", Name: "Eve"})
	requireKind(t, err, doppelkopf.KindState)
}

func TestStartAuthorization(t *testing.T) {
	game := doppelkopf.NewGame(doppelkopf.GameSettings{}, doppelkopf.Player{ID: "a", Name: "Anna"})
	for _, p := range []doppelkopf.Player{{ID: "b", Name: "Ben"}, {ID: "c", Name: "Clara"}} {
		if err := game.Join(p); err != nil {
			t.Fatalf("Join failed: %v", err)
		}
	}

	// Non-creator cannot start.
	requireKind(t, game.Start("b"), doppelkopf.KindAuthorization)

	// Creator cannot start with 3 players.
	requireKind(t, game.Start("a"), doppelkopf.KindValidation)

	if err := game.Join(doppelkopf.Player{ID: "d", Name: "David"}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := game.Start("a"); err != nil {
		t.Fatalf("Start with 4 seated players failed: %v", err)
	}
	if game.Phase() != doppelkopf.PhaseTrickPlay {
		t.Errorf("Phase should be trickPlay, got %s", game.Phase())
	}

	// Starting twice is a phase error.
	requireKind(t, game.Start("a"), doppelkopf.KindState)
}

func TestDealConservation(t *testing.T) {
	settings := doppelkopf.GameSettings{}
	game := newLobby(t, settings)
	if err := game.Start("a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 40-card deck: 10 cards per hand immediately after dealing.
	total := 0
	for _, p := range game.Players() {
		hand := game.ClientState(p.ID).Hand
		if len(hand) != 10 {
			t.Errorf("Player %s should hold 10 cards, got %d", p.ID, len(hand))
		}
		total += len(hand)
	}
	if total != 40 {
		t.Errorf("Dealt cards should sum to the deck size, got %d", total)
	}
}

func TestSheepDealPolicy(t *testing.T) {
	// 41-card sheep deck: 10 cards per hand, one card stays undealt.
	settings := doppelkopf.GameSettings{WithSheep: true}
	game := newLobby(t, settings)
	if err := game.Start("a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for _, p := range game.Players() {
		if got := len(game.ClientState(p.ID).Hand); got != 10 {
			t.Errorf("Player %s should hold 10 cards, got %d", p.ID, got)
		}
	}
}

func TestPlayCardOutOfTurn(t *testing.T) {
	settings := doppelkopf.GameSettings{}
	game := newLobby(t, settings)
	if err := game.Start("a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	state := game.ClientState("")
	notCurrent := ""
	for _, p := range game.Players() {
		if p.ID != state.CurrentPlayerID {
			notCurrent = p.ID
			break
		}
	}

	before := game.ClientState(notCurrent)
	_, err := game.PlayCard(notCurrent, before.Hand[0])
	requireKind(t, err, doppelkopf.KindState)

	// Rejection leaves hands, trick, and turn pointer untouched.
	after := game.ClientState(notCurrent)
	if len(after.Hand) != len(before.Hand) {
		t.Error("Rejected play must not change the hand")
	}
	if len(after.CurrentTrick) != 0 {
		t.Error("Rejected play must not touch the trick")
	}
	if after.CurrentPlayerID != before.CurrentPlayerID {
		t.Error("Rejected play must not advance the turn")
	}
}

func TestPlayCardNotInHand(t *testing.T) {
	settings := doppelkopf.GameSettings{}
	game := newLobby(t, settings)
	if err := game.Start("a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	current := game.ClientState("").CurrentPlayerID
	hand := game.ClientState(current).Hand

	// Find a card the player does not hold.
	deck := doppelkopf.NewDeck(settings)
	var missing doppelkopf.Card
	found := false
	for _, c := range deck.Cards {
		held := false
		for _, h := range hand {
			if h == c {
				held = true
				break
			}
		}
		if !held {
			missing = c
			found = true
			break
		}
	}
	if !found {
		t.Fatal("Could not find a card outside the hand")
	}

	_, err := game.PlayCard(current, missing)
	requireKind(t, err, doppelkopf.KindValidation)
	if got := len(game.ClientState(current).Hand); got != len(hand) {
		t.Error("Rejected play must not change the hand")
	}
}

func TestPlayCardFollowSuitViolation(t *testing.T) {
	settings := doppelkopf.GameSettings{}

	// Play tricks until someone holds the led suit plus an off-suit
	// card, then try the off-suit card.
	for attempt := 0; attempt < 50; attempt++ {
		game := newLobby(t, settings)
		if err := game.Start("a"); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		leader := game.ClientState("").CurrentPlayerID
		lead := firstLegal(t, game, leader, settings)
		if _, err := game.PlayCard(leader, lead); err != nil {
			t.Fatalf("Lead failed: %v", err)
		}

		next := game.ClientState("").CurrentPlayerID
		state := game.ClientState(next)

		var legal, illegal *doppelkopf.Card
		for i := range state.Hand {
			c := state.Hand[i]
			if doppelkopf.IsLegalPlay(c, state.Hand, state.CurrentTrick, settings) {
				legal = &state.Hand[i]
			} else {
				illegal = &state.Hand[i]
			}
		}
		if legal == nil || illegal == nil {
			continue // hand cannot violate follow-suit, redeal
		}

		before := game.ClientState(next)
		_, err := game.PlayCard(next, *illegal)
		requireKind(t, err, doppelkopf.KindValidation)

		after := game.ClientState(next)
		if len(after.Hand) != len(before.Hand) {
			t.Error("Rejected play must not change the hand")
		}
		if len(after.CurrentTrick) != len(before.CurrentTrick) {
			t.Error("Rejected play must not touch the trick")
		}
		if after.CurrentPlayerID != next {
			t.Error("Rejected play must not advance the turn")
		}
		return
	}
	t.Fatal("Never dealt a hand that could violate follow-suit")
}

func TestFullGamePlaythrough(t *testing.T) {
	settings := doppelkopf.GameSettings{}
	game := newLobby(t, settings)
	if err := game.Start("a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	tricks := 0
	for game.Phase() == doppelkopf.PhaseTrickPlay {
		current := game.ClientState("").CurrentPlayerID
		result, err := game.PlayCard(current, firstLegal(t, game, current, settings))
		if err != nil {
			t.Fatalf("Legal play rejected: %v", err)
		}

		if result.TrickComplete {
			tricks++
			// The trick winner leads the next trick.
			if !result.Finished {
				next := game.ClientState("").CurrentPlayerID
				if next != result.TrickWinner.PlayerID {
					t.Fatalf("Winner %s should lead, but %s does", result.TrickWinner.PlayerID, next)
				}
			}
		}

		// Cards are conserved: hands plus played cards always equal
		// the deck size.
		inHands := 0
		for _, p := range game.Players() {
			inHands += len(game.ClientState(p.ID).Hand)
		}
		inTricks := 4*game.ClientState("").TricksPlayed + len(game.ClientState("").CurrentTrick)
		if inHands+inTricks != 40 {
			t.Fatalf("Card conservation violated: %d in hands, %d in tricks", inHands, inTricks)
		}
	}

	if game.Phase() != doppelkopf.PhaseScoring {
		t.Fatalf("Game should end in scoring, got %s", game.Phase())
	}
	if tricks != 10 {
		t.Errorf("A 40-card deal has 10 tricks, got %d", tricks)
	}

	scores, err := game.Scores()
	if err != nil {
		t.Fatalf("Scores failed: %v", err)
	}
	total := 0
	for _, count := range scores {
		total += count
	}
	if total != 10 {
		t.Errorf("Scores should sum to the trick count 10, got %d", total)
	}
}

func TestScoresBeforeScoringRejected(t *testing.T) {
	game := newLobby(t, doppelkopf.GameSettings{})
	if err := game.Start("a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, err := game.Scores()
	requireKind(t, err, doppelkopf.KindState)
}

func TestLeaveClosesWhenCreatorGoes(t *testing.T) {
	game := newLobby(t, doppelkopf.GameSettings{})

	closed, err := game.Leave("a")
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if !closed {
		t.Error("Creator leaving should close the session")
	}
	if game.Phase() != doppelkopf.PhaseClosed {
		t.Errorf("Phase should be closed, got %s", game.Phase())
	}
}

func TestLeaveReseatsLobby(t *testing.T) {
	game := newLobby(t, doppelkopf.GameSettings{})

	closed, err := game.Leave("c")
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if closed {
		t.Error("Non-creator lobby leave should not close the session")
	}

	players := game.Players()
	if len(players) != 3 {
		t.Fatalf("Roster should have 3 players, got %d", len(players))
	}
	for i, p := range players {
		if p.Seat != i {
			t.Errorf("Seat %d should be %d after reseating, got %+v", i, i, p)
		}
	}
}

func TestLeaveMidGameCloses(t *testing.T) {
	game := newLobby(t, doppelkopf.GameSettings{})
	if err := game.Start("a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// A 4-seat trick round cannot continue with a vacated seat.
	closed, err := game.Leave("c")
	if err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if !closed {
		t.Error("Mid-game leave should close the session")
	}
}

func TestCloseIsTerminal(t *testing.T) {
	game := newLobby(t, doppelkopf.GameSettings{})

	if err := game.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	requireKind(t, game.Close(), doppelkopf.KindState)
	requireKind(t, game.Join(doppelkopf.Player{ID: "e", Name: "Eve"}), doppelkopf.KindState)
	requireKind(t, game.Start("a"), doppelkopf.KindState)
	_, err := game.PlayCard("a", doppelkopf.Card{})
	requireKind(t, err, doppelkopf.KindState)
}
