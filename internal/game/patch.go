package game

import (
	"pusoy/internal/protocol"
)

// PatchOp enumerates the UI instructions the reconciler can emit. A front
// end interprets them however it renders: the terminal client prints lines,
// a browser shell would touch the DOM.
type PatchOp int

const (
	// OpBindActions fires once, on welcome: the front end should wire up
	// its start/play/timer inputs.
	OpBindActions PatchOp = iota
	// OpShowHostControls reveals host-only inputs (start, timer config).
	OpShowHostControls
	// OpSeatPresence toggles a seat's avatar between human and bot.
	OpSeatPresence
	// OpReplaceHand swaps in the full local hand.
	OpReplaceHand
	// OpShowRoundControls hides lobby inputs and shows play inputs.
	OpShowRoundControls
	// OpReplaceTable swaps the cards shown on the table.
	OpReplaceTable
	// OpSeatFlags refreshes a seat's load badge and turn indicators.
	OpSeatFlags
	// OpStartCountdown begins a turn countdown for a seat.
	OpStartCountdown
	// OpStopCountdown cancels and hides a seat's countdown.
	OpStopCountdown
	// OpCheckPlayable asks the front end to refresh its advisory
	// "is my current selection playable" hint.
	OpCheckPlayable
	// OpMessage displays transient diagnostic text.
	OpMessage
)

var patchOpNames = map[PatchOp]string{
	OpBindActions:       "bind-actions",
	OpShowHostControls:  "show-host-controls",
	OpSeatPresence:      "seat-presence",
	OpReplaceHand:       "replace-hand",
	OpShowRoundControls: "show-round-controls",
	OpReplaceTable:      "replace-table",
	OpSeatFlags:         "seat-flags",
	OpStartCountdown:    "start-countdown",
	OpStopCountdown:     "stop-countdown",
	OpCheckPlayable:     "check-playable",
	OpMessage:           "message",
}

func (op PatchOp) String() string {
	if name, ok := patchOpNames[op]; ok {
		return name
	}
	return "patch-op(?)"
}

// Patch is one UI instruction. Seat-targeted ops carry the table-relative
// position, so "my" cards always render in the fixed local spot no matter
// which absolute seat the player drew.
type Patch struct {
	Op    PatchOp
	Pos   protocol.Relative
	Cards []protocol.Card
	Seat  SeatState
	Human bool
	// Millis is the countdown duration for OpStartCountdown.
	Millis int64
	Text   string
}
