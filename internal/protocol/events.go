package protocol

import (
	"encoding/json"
	"fmt"
)

// Event is one server-push message from the session stream. The vocabulary
// is closed: decoding an event name outside it fails with
// *UnknownEventError, because continuing past an unrecognized event would
// desynchronize client state from server truth.
type Event interface {
	// Name is the wire name in the stream envelope.
	Name() string
}

// Welcome is sent once to the joining player and carries their seat.
type Welcome struct {
	Seat Seat `json:"seat"`
}

// Host tells the receiving player they are the session host.
type Host struct{}

// Connected announces that a seat is now controlled by a human.
type Connected struct {
	Seat Seat `json:"seat"`
}

// Deal replaces the receiving player's hand and starts a round.
type Deal struct {
	Cards []Card `json:"cards"`
}

// Play reports a completed play (or pass) by a seat, including that seat's
// remaining card count.
type Play struct {
	Seat  Seat   `json:"seat"`
	Load  int    `json:"load"`
	Pass  bool   `json:"pass"`
	Cards []Card `json:"cards"`
}

// Turn announces whose turn it is. Millis, when non-nil, is the action
// timer duration for this turn; Control reports whether the seat leads.
type Turn struct {
	Seat    Seat   `json:"seat"`
	Control bool   `json:"control"`
	Millis  *int64 `json:"millis"`
}

// Win marks a seat as having emptied its hand.
type Win struct {
	Seat Seat `json:"seat"`
}

// Disconnected announces that a seat fell back to bot control.
type Disconnected struct {
	Seat Seat `json:"seat"`
}

// Retry is a transient recoverable notice, e.g. the reason a requested
// session could not be joined before falling back to a fresh one.
type Retry struct {
	Error string `json:"error"`
}

func (Welcome) Name() string      { return "welcome" }
func (Host) Name() string         { return "host" }
func (Connected) Name() string    { return "connected" }
func (Deal) Name() string         { return "deal" }
func (Play) Name() string         { return "play" }
func (Turn) Name() string         { return "turn" }
func (Win) Name() string          { return "win" }
func (Disconnected) Name() string { return "disconnected" }
func (Retry) Name() string        { return "retry" }

// UnknownEventError reports an event name outside the vocabulary. It is a
// protocol violation, fatal to the stream.
type UnknownEventError struct {
	EventName string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("protocol: unknown event %q", e.EventName)
}

// envelope is the wire shape of every stream record.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeEvent parses one stream record into its typed event.
func DecodeEvent(raw json.RawMessage) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode event envelope: %w", err)
	}

	var ev Event
	switch env.Event {
	case "welcome":
		ev = &Welcome{}
	case "host":
		ev = &Host{}
	case "connected":
		ev = &Connected{}
	case "deal":
		ev = &Deal{}
	case "play":
		ev = &Play{}
	case "turn":
		ev = &Turn{}
	case "win":
		ev = &Win{}
	case "disconnected":
		ev = &Disconnected{}
	case "retry":
		ev = &Retry{}
	default:
		return nil, &UnknownEventError{EventName: env.Event}
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, fmt.Errorf("protocol: decode %s payload: %w", env.Event, err)
		}
	}
	return indirect(ev), nil
}

// indirect returns the event by value so consumers can type-switch on
// concrete types rather than pointers.
func indirect(ev Event) Event {
	switch e := ev.(type) {
	case *Welcome:
		return *e
	case *Host:
		return *e
	case *Connected:
		return *e
	case *Deal:
		return *e
	case *Play:
		return *e
	case *Turn:
		return *e
	case *Win:
		return *e
	case *Disconnected:
		return *e
	case *Retry:
		return *e
	default:
		return ev
	}
}

// EncodeEvent wraps ev in the stream envelope. The result is ready for a
// jsonseq encoder.
func EncodeEvent(ev Event) (json.RawMessage, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s payload: %w", ev.Name(), err)
	}
	raw, err := json.Marshal(envelope{Event: ev.Name(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s envelope: %w", ev.Name(), err)
	}
	return raw, nil
}

// PlayRequest is the body of POST /api/play and POST /api/playable.
type PlayRequest struct {
	Cards []Card `json:"cards"`
}

// TimerRequest is the body of PUT /api/timer. A nil Millis disables the
// action timer.
type TimerRequest struct {
	Millis *int64 `json:"millis"`
}
