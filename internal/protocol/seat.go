// Package protocol defines the wire-level data model shared by the pusoy
// client and server: seats, table-relative positions, the bearer credential
// issued at join time, and the closed event vocabulary of the session stream.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Seat is one of the four fixed absolute positions at the table, in
// clockwise order.
type Seat uint8

const (
	North Seat = iota
	East
	South
	West
)

// Seats lists all seats in clockwise turn order.
var Seats = [4]Seat{North, East, South, West}

var seatNames = [4]string{"north", "east", "south", "west"}

// ParseSeat converts a wire seat name to a Seat.
func ParseSeat(name string) (Seat, error) {
	for i, n := range seatNames {
		if n == name {
			return Seat(i), nil
		}
	}
	return 0, fmt.Errorf("protocol: unknown seat %q", name)
}

func (s Seat) String() string {
	if int(s) < len(seatNames) {
		return seatNames[s]
	}
	return fmt.Sprintf("seat(%d)", uint8(s))
}

// Next returns the seat that acts after s.
func (s Seat) Next() Seat {
	return Seat((uint8(s) + 1) % 4)
}

// MarshalJSON encodes the seat as its lower-case wire name.
func (s Seat) MarshalJSON() ([]byte, error) {
	if int(s) >= len(seatNames) {
		return nil, fmt.Errorf("protocol: invalid seat %d", uint8(s))
	}
	return json.Marshal(seatNames[s])
}

// UnmarshalJSON rejects anything outside the four seat names.
func (s *Seat) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("protocol: seat: %w", err)
	}
	seat, err := ParseSeat(name)
	if err != nil {
		return err
	}
	*s = seat
	return nil
}

// Relative is a seat expressed from the local player's point of view. The
// local seat is always My; the remaining three follow clockwise.
type Relative uint8

const (
	My Relative = iota
	Left
	Across
	Right
)

// Relatives lists all relative positions in clockwise order starting at My.
var Relatives = [4]Relative{My, Left, Across, Right}

var relativeNames = [4]string{"my", "left", "across", "right"}

func (r Relative) String() string {
	if int(r) < len(relativeNames) {
		return relativeNames[r]
	}
	return fmt.Sprintf("relative(%d)", uint8(r))
}

// RelativeTo maps s onto the table as seen from my. The mapping is a pure
// cyclic offset, so for any fixed my it is a bijection and my maps to My.
func (s Seat) RelativeTo(my Seat) Relative {
	return Relative((uint8(s) - uint8(my) + 4) % 4)
}
