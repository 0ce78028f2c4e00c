// Package game holds the client-side table state and the reconciliation
// logic that folds server events into it. The core is a pure transition
// function from (state, event) to (state, patch list), so protocol behavior
// is testable without any front end attached.
package game

import (
	"pusoy/internal/protocol"
)

// Phase tracks where the session is in its lifecycle.
type Phase int

const (
	// Joining covers the window between dialing and the welcome event.
	Joining Phase = iota
	// Lobby is after welcome, before the first deal.
	Lobby
	// Round is in-play, after a deal.
	Round
)

// SeatState is the transient per-seat display state. None of it survives the
// stream; the server resends whatever matters on reconnect.
type SeatState struct {
	Load       int
	HasTurn    bool
	HasControl bool
	HasPassed  bool
	HasWon     bool
	Connected  bool
}

// State is everything the client knows about the table. The local hand is
// the only hand contents it ever learns; for other seats it tracks counts
// only.
type State struct {
	Phase  Phase
	MySeat protocol.Seat
	Host   bool
	Hand   []protocol.Card
	Table  []protocol.Card
	Seats  [4]SeatState
}

// NewState returns the pre-welcome state.
func NewState() State {
	return State{Phase: Joining}
}

// Relative maps an absolute seat to its table position as seen from the
// local seat. Only meaningful once welcome has fixed MySeat.
func (s State) Relative(seat protocol.Seat) protocol.Relative {
	return seat.RelativeTo(s.MySeat)
}

// Seat returns the display state for an absolute seat.
func (s State) Seat(seat protocol.Seat) SeatState {
	return s.Seats[seat]
}
