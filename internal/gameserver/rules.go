// Package gameserver implements the session side of the pusoy protocol:
// seating, host tracking, the lobby/active/win phase machine, event fan-out
// over record-separated JSON streams, and per-turn deadlines with bot
// takeover. Card-game legality is deliberately not implemented here; it
// hides behind the Rules interface so the transport contract can be
// exercised (and tested) with a permissive stand-in.
package gameserver

import (
	"errors"
	"math/rand"

	"pusoy/internal/protocol"
)

// Rules is the opaque legality validator and bot move chooser. table is the
// current stack (nil when the seat leads), hand the acting seat's cards.
type Rules interface {
	// Validate reports whether playing cards (or passing) is legal right
	// now. leading is true when the acting seat has control.
	Validate(table, hand []protocol.Card, cards []protocol.Card, pass, leading bool) error

	// Choose picks the move a bot makes for hand. It must return a move
	// Validate accepts; an empty result is a pass.
	Choose(table, hand []protocol.Card, leading bool) []protocol.Card
}

// ErrMustPlayOnControl is the one structural rule every variant shares: a
// leading seat cannot pass, or the round would stall forever.
var ErrMustPlayOnControl = errors.New("cannot pass while holding control")

var errDontHaveCard = errors.New("cannot play a card outside the hand")

// PermissiveRules accepts any play made from the player's own hand. It
// exists for the harness and tests; real deployments plug in an actual
// rule engine.
type PermissiveRules struct{}

func (PermissiveRules) Validate(table, hand, cards []protocol.Card, pass, leading bool) error {
	if pass {
		if leading {
			return ErrMustPlayOnControl
		}
		return nil
	}
	held := make(map[protocol.Card]int, len(hand))
	for _, c := range hand {
		held[c]++
	}
	for _, c := range cards {
		if held[c] == 0 {
			return errDontHaveCard
		}
		held[c]--
	}
	return nil
}

func (PermissiveRules) Choose(table, hand []protocol.Card, leading bool) []protocol.Card {
	if !leading {
		return nil
	}
	if len(hand) == 0 {
		return nil
	}
	return hand[:1]
}

// threeOfClubs opens every round.
const threeOfClubs protocol.Card = "3♣"

var (
	deckRanks = []string{"3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K", "A", "2"}
	deckSuits = []string{"♣", "♠", "♥", "♦"}
)

// Deck returns the 52 card ids in rank-major order, 3♣ first.
func Deck() []protocol.Card {
	deck := make([]protocol.Card, 0, 52)
	for _, rank := range deckRanks {
		for _, suit := range deckSuits {
			deck = append(deck, protocol.Card(rank+suit))
		}
	}
	return deck
}

// Dealer produces the four hands of a fresh round, indexed by seat.
type Dealer func() [4][]protocol.Card

// ShuffleDealer deals a shuffled 52-card deck 13 to a seat.
func ShuffleDealer() [4][]protocol.Card {
	deck := Deck()
	rand.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	var hands [4][]protocol.Card
	for i, seat := range protocol.Seats {
		hands[seat] = deck[i*13 : (i+1)*13]
	}
	return hands
}

// startingSeat is whoever holds 3♣; ties are impossible in a full deal, and
// a custom dealer that omits the card starts at north.
func startingSeat(hands [4][]protocol.Card) protocol.Seat {
	for _, seat := range protocol.Seats {
		for _, c := range hands[seat] {
			if c == threeOfClubs {
				return seat
			}
		}
	}
	return protocol.North
}
