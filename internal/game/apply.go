package game

import (
	"errors"
	"fmt"
	"slices"

	"pusoy/internal/protocol"
)

// ErrEventBeforeWelcome is returned when the stream carries any event before
// the one-time welcome; the server never does this, so it marks a
// misbehaving or mismatched server.
var ErrEventBeforeWelcome = errors.New("game: received event before welcome")

// Apply folds one server event into the state and returns the successor
// state plus the UI patches it implies. It is pure: no I/O, no clocks, no
// retained references into the argument state.
//
// Events must be applied in server-send order; hand and table mutations are
// order-dependent.
func Apply(s State, ev protocol.Event) (State, []Patch, error) {
	if s.Phase == Joining {
		w, ok := ev.(protocol.Welcome)
		if !ok {
			return s, nil, fmt.Errorf("%w: %s", ErrEventBeforeWelcome, ev.Name())
		}
		return applyWelcome(s, w)
	}

	switch ev := ev.(type) {
	case protocol.Welcome:
		// The server sends welcome exactly once.
		return s, nil, fmt.Errorf("game: duplicate welcome for seat %v", ev.Seat)
	case protocol.Host:
		s.Host = true
		return s, []Patch{{Op: OpShowHostControls}}, nil
	case protocol.Connected:
		return applyPresence(s, ev.Seat, true)
	case protocol.Disconnected:
		return applyPresence(s, ev.Seat, false)
	case protocol.Deal:
		return applyDeal(s, ev)
	case protocol.Play:
		return applyPlay(s, ev)
	case protocol.Turn:
		return applyTurn(s, ev)
	case protocol.Win:
		s.Seats[ev.Seat].HasWon = true
		pos := s.Relative(ev.Seat)
		return s, []Patch{{Op: OpSeatFlags, Pos: pos, Seat: s.Seats[ev.Seat]}}, nil
	case protocol.Retry:
		return s, []Patch{{Op: OpMessage, Text: ev.Error}}, nil
	default:
		// protocol.DecodeEvent already rejects unknown names; this guards
		// against a new event type being added without a handler here.
		return s, nil, fmt.Errorf("game: no handler for event %s", ev.Name())
	}
}

func applyWelcome(s State, ev protocol.Welcome) (State, []Patch, error) {
	s.Phase = Lobby
	s.MySeat = ev.Seat
	s.Seats[ev.Seat].Connected = true
	patches := []Patch{
		{Op: OpBindActions},
		{Op: OpSeatPresence, Pos: protocol.My, Human: true},
	}
	return s, patches, nil
}

func applyPresence(s State, seat protocol.Seat, human bool) (State, []Patch, error) {
	s.Seats[seat].Connected = human
	pos := s.Relative(seat)
	return s, []Patch{{Op: OpSeatPresence, Pos: pos, Human: human}}, nil
}

func applyDeal(s State, ev protocol.Deal) (State, []Patch, error) {
	s.Phase = Round
	s.Hand = slices.Clone(ev.Cards)
	s.Table = nil

	patches := []Patch{
		{Op: OpShowRoundControls},
		{Op: OpReplaceHand, Pos: protocol.My, Cards: slices.Clone(s.Hand)},
		{Op: OpReplaceTable},
	}
	// A fresh deal gives every seat a full hand and wipes last round's
	// passed/won/turn markers.
	for _, seat := range protocol.Seats {
		s.Seats[seat] = SeatState{
			Load:      len(ev.Cards),
			Connected: s.Seats[seat].Connected,
		}
		patches = append(patches, Patch{
			Op:   OpSeatFlags,
			Pos:  s.Relative(seat),
			Seat: s.Seats[seat],
		})
	}
	return s, patches, nil
}

func applyPlay(s State, ev protocol.Play) (State, []Patch, error) {
	pos := s.Relative(ev.Seat)

	st := s.Seats[ev.Seat]
	st.Load = ev.Load
	st.HasTurn = false
	st.HasControl = false
	if ev.Pass {
		st.HasPassed = true
	}
	s.Seats[ev.Seat] = st

	patches := []Patch{{Op: OpStopCountdown, Pos: pos}}

	if !ev.Pass {
		s.Table = slices.Clone(ev.Cards)
		patches = append(patches, Patch{Op: OpReplaceTable, Cards: slices.Clone(s.Table)})

		if ev.Seat == s.MySeat {
			s.Hand = removeCards(s.Hand, ev.Cards)
			patches = append(patches, Patch{
				Op:    OpReplaceHand,
				Pos:   protocol.My,
				Cards: slices.Clone(s.Hand),
			})
			if len(s.Hand) != ev.Load {
				return s, nil, fmt.Errorf(
					"game: hand size %d disagrees with reported load %d", len(s.Hand), ev.Load)
			}
		}
	}

	patches = append(patches, Patch{Op: OpSeatFlags, Pos: pos, Seat: s.Seats[ev.Seat]})
	return s, patches, nil
}

func applyTurn(s State, ev protocol.Turn) (State, []Patch, error) {
	pos := s.Relative(ev.Seat)

	st := s.Seats[ev.Seat]
	st.HasTurn = true
	st.HasControl = ev.Control
	st.HasPassed = false
	s.Seats[ev.Seat] = st

	patches := []Patch{{Op: OpSeatFlags, Pos: pos, Seat: st}}
	if ev.Millis != nil {
		patches = append(patches, Patch{Op: OpStartCountdown, Pos: pos, Millis: *ev.Millis})
	}
	if ev.Seat == s.MySeat {
		patches = append(patches, Patch{Op: OpCheckPlayable})
	}
	return s, patches, nil
}

// removeCards subtracts one occurrence of each played card from hand,
// preserving order.
func removeCards(hand, played []protocol.Card) []protocol.Card {
	out := make([]protocol.Card, 0, len(hand))
	drop := make(map[protocol.Card]int, len(played))
	for _, c := range played {
		drop[c]++
	}
	for _, c := range hand {
		if drop[c] > 0 {
			drop[c]--
			continue
		}
		out = append(out, c)
	}
	return out
}
