package gameserver

import (
	"math/rand"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"pusoy/internal/protocol"
)

// eventBuffer bounds each subscriber's outbox. A client that cannot drain
// this many events is effectively gone; the write path treats overflow as a
// disconnect.
const eventBuffer = 256

type phase int

const (
	phaseLobby phase = iota
	phaseActive
	phaseWin
)

// user is one connected human: their secret and their event outbox.
type user struct {
	secret uuid.UUID
	ch     chan protocol.Event
}

// session is one table, in whatever phase it currently is. All fields are
// guarded by mu; the deadline timer goroutine re-locks before acting.
type session struct {
	srv *Server
	log zerolog.Logger

	mu    sync.Mutex
	id    uuid.UUID
	phase phase

	// seatOrder is the shuffled seat-assignment preference, fixed at
	// session creation; joiners take the last free seat in this order.
	seatOrder []protocol.Seat
	users     map[protocol.Seat]*user
	host      *protocol.Seat

	// actionTimer is the host-configured per-turn timer for humans; nil
	// means humans are untimed. Bots always act on botActionTimer.
	actionTimer *time.Duration

	// Round state, meaningful in phaseActive only.
	hands     [4][]protocol.Card
	table     []protocol.Card
	current   protocol.Seat
	lastToAct protocol.Seat // last seat that played rather than passed
	deadline  *turnDeadline
	turnSeq   uint64
}

// turnDeadline is one armed turn timer and the switch that releases its
// waiting goroutine when the turn resolves early.
type turnDeadline struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

func newSession(srv *Server, id uuid.UUID) *session {
	order := slices.Clone(protocol.Seats[:])
	rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return &session{
		srv:       srv,
		log:       srv.log.With().Str("session_id", id.String()).Logger(),
		id:        id,
		phase:     phaseLobby,
		seatOrder: order,
		users:     make(map[protocol.Seat]*user),
	}
}

// isHuman reports whether a connected player holds the seat.
func (s *session) isHuman(seat protocol.Seat) bool {
	_, ok := s.users[seat]
	return ok
}

// send queues an event for one seat, if a human holds it. An event is never
// dropped while the subscriber stays connected: a gap in the sequence would
// silently desynchronize the client, so a full outbox disconnects the seat
// and ends its stream instead.
func (s *session) send(seat protocol.Seat, ev protocol.Event) {
	u, ok := s.users[seat]
	if !ok {
		return
	}
	select {
	case u.ch <- ev:
	default:
		s.log.Warn().
			Stringer("seat", seat).
			Str("event", ev.Name()).
			Msg("subscriber outbox full, disconnecting")
		s.dropLocked(seat)
	}
}

// broadcast queues an event for every connected seat.
func (s *session) broadcast(ev protocol.Event) {
	for _, seat := range protocol.Seats {
		s.send(seat, ev)
	}
}

// checkAuth verifies that the credential matches a seated player.
func (s *session) checkAuth(auth protocol.Auth) error {
	u, ok := s.users[auth.Seat]
	if !ok {
		return errAbsent
	}
	if u.secret != auth.UserSecret {
		return errBadAuth
	}
	return nil
}

// join seats a new player and plays back the lobby greeting: welcome (plus
// a retry notice when this join is a fallback), host if they are host, and
// presence both ways.
func (s *session) join(retry error) (protocol.Auth, <-chan protocol.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != phaseLobby {
		return protocol.Auth{}, nil, errBadPhase
	}

	var seat protocol.Seat
	found := false
	for i := len(s.seatOrder) - 1; i >= 0; i-- {
		if !s.isHuman(s.seatOrder[i]) {
			seat = s.seatOrder[i]
			found = true
			break
		}
	}
	if !found {
		return protocol.Auth{}, nil, errFull
	}

	u := &user{secret: uuid.New(), ch: make(chan protocol.Event, eventBuffer)}
	s.users[seat] = u
	if s.host == nil {
		s.host = &seat
	}

	s.send(seat, protocol.Welcome{Seat: seat})
	if retry != nil {
		s.send(seat, protocol.Retry{Error: retry.Error()})
	}
	if *s.host == seat {
		s.send(seat, protocol.Host{})
	}
	for _, other := range protocol.Seats {
		if other != seat {
			s.send(other, protocol.Connected{Seat: seat})
			if s.isHuman(other) {
				s.send(seat, protocol.Connected{Seat: other})
			}
		}
	}

	s.log.Info().Stringer("seat", seat).Msg("player joined")
	return protocol.Auth{Seat: seat, SessionID: s.id, UserSecret: u.secret}, u.ch, nil
}

// disconnect removes a seat's human and reports whether the session is now
// empty. The seat may already be gone if its outbox overflowed; the answer
// still stands so the streaming handler can evict an empty session.
func (s *session) disconnect(auth protocol.Auth) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[auth.Seat]; ok && u.secret == auth.UserSecret {
		s.dropLocked(auth.Seat)
	}
	return len(s.users) == 0
}

// dropLocked unseats a human: closes their stream, reassigns host if
// needed, and lets a bot finish their turn. Dropping a seat broadcasts, and
// a broadcast can drop further stalled seats; each drop shrinks users, so
// the recursion bottoms out.
func (s *session) dropLocked(seat protocol.Seat) {
	u, ok := s.users[seat]
	if !ok {
		return
	}
	delete(s.users, seat)
	close(u.ch)

	if s.host != nil && *s.host == seat {
		s.host = nil
		for i := len(s.seatOrder) - 1; i >= 0; i-- {
			if next := s.seatOrder[i]; s.isHuman(next) {
				s.host = &next
				s.send(next, protocol.Host{})
				break
			}
		}
	}

	s.broadcast(protocol.Disconnected{Seat: seat})
	s.log.Info().Stringer("seat", seat).Msg("player disconnected")

	if s.phase == phaseActive && s.current == seat {
		// The seat is a bot now; re-solicit so the bot deadline applies.
		s.solicitLocked()
	}
}

// setTimer stores the host's per-turn timer. Out-of-range requests disable
// the timer rather than failing.
func (s *session) setTimer(auth protocol.Auth, millis *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAuth(auth); err != nil {
		return err
	}
	if s.phase != phaseLobby {
		return errBadPhase
	}
	if s.host == nil || *s.host != auth.Seat {
		return errNotHost
	}

	if millis == nil || time.Duration(*millis)*time.Millisecond > s.srv.maxActionTimer {
		s.actionTimer = nil
	} else {
		d := time.Duration(*millis) * time.Millisecond
		s.actionTimer = &d
	}
	return nil
}

// start moves the lobby into an active round.
func (s *session) start(auth protocol.Auth) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAuth(auth); err != nil {
		return err
	}
	if s.phase != phaseLobby {
		return errBadPhase
	}
	if s.host == nil || *s.host != auth.Seat {
		return errNotHost
	}

	s.dealLocked()
	return nil
}

func (s *session) dealLocked() {
	s.phase = phaseActive
	s.hands = s.srv.deal()
	s.table = nil
	s.current = startingSeat(s.hands)
	s.lastToAct = s.current

	for _, seat := range protocol.Seats {
		s.send(seat, protocol.Deal{Cards: slices.Clone(s.hands[seat])})
	}
	s.solicitLocked()
}

func (s *session) hasControl() bool {
	return s.lastToAct == s.current
}

// playable answers the advisory dry-run without changing anything.
func (s *session) playable(auth protocol.Auth, cards []protocol.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAuth(auth); err != nil {
		return err
	}
	if s.phase != phaseActive {
		return errBadPhase
	}
	if auth.Seat != s.current {
		return errNotCurrent
	}
	return s.validateLocked(auth.Seat, cards)
}

// humanPlay applies a play submitted over the API.
func (s *session) humanPlay(auth protocol.Auth, cards []protocol.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkAuth(auth); err != nil {
		return err
	}
	if s.phase != phaseActive {
		return errBadPhase
	}
	if auth.Seat != s.current {
		return errNotCurrent
	}
	return s.playLocked(auth.Seat, cards)
}

func (s *session) validateLocked(seat protocol.Seat, cards []protocol.Card) error {
	pass := len(cards) == 0
	err := s.srv.rules.Validate(s.table, s.hands[seat], cards, pass, s.hasControl())
	if err != nil {
		return &apiError{status: http.StatusBadRequest, msg: err.Error()}
	}
	return nil
}

// playLocked is the one mutation point of round state, shared by humans and
// the bot deadline.
func (s *session) playLocked(seat protocol.Seat, cards []protocol.Card) error {
	if err := s.validateLocked(seat, cards); err != nil {
		return err
	}

	pass := len(cards) == 0
	if !pass {
		s.hands[seat] = removeCards(s.hands[seat], cards)
		s.table = slices.Clone(cards)
		s.lastToAct = seat
	}
	load := len(s.hands[seat])

	s.broadcast(protocol.Play{
		Seat:  seat,
		Load:  load,
		Pass:  pass,
		Cards: slices.Clone(cards),
	})

	if load == 0 {
		s.winLocked(seat)
		return nil
	}

	s.current = s.current.Next()
	s.solicitLocked()
	return nil
}

func (s *session) winLocked(winner protocol.Seat) {
	s.phase = phaseWin
	s.stopDeadlineLocked()
	s.broadcast(protocol.Win{Seat: winner})
	s.log.Info().Stringer("seat", winner).Msg("round won")
}

// solicitLocked announces the current turn and arms its deadline. Humans
// get the host-configured timer (or none); bot seats always act after
// botActionTimer.
func (s *session) solicitLocked() {
	s.stopDeadlineLocked()
	s.turnSeq++
	seq := s.turnSeq

	var timer *time.Duration
	if s.isHuman(s.current) {
		timer = s.actionTimer
	} else {
		d := s.srv.botActionTimer
		timer = &d
	}

	var millis *int64
	if timer != nil {
		m := timer.Milliseconds()
		millis = &m
	}

	s.broadcast(protocol.Turn{
		Seat:    s.current,
		Control: s.hasControl(),
		Millis:  millis,
	})

	// The broadcast can drop a stalled subscriber, which re-solicits when
	// the dropped seat was current; the newer solicit owns the deadline.
	if s.turnSeq != seq || timer == nil {
		return
	}
	d := &turnDeadline{
		timer:  s.srv.clock.NewTimer(*timer),
		cancel: make(chan struct{}),
	}
	s.deadline = d
	go func() {
		select {
		case <-d.timer.Chan():
			s.forcePlay(seq)
		case <-d.cancel:
		}
	}()
}

// stopDeadlineLocked disarms the deadline and releases its goroutine.
func (s *session) stopDeadlineLocked() {
	if s.deadline == nil {
		return
	}
	if !s.deadline.timer.Stop() {
		select {
		case <-s.deadline.timer.Chan():
		default:
		}
	}
	close(s.deadline.cancel)
	s.deadline = nil
}

// forcePlay runs when a turn deadline fires: the server plays for the
// current seat using the bot chooser.
func (s *session) forcePlay(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A play that happened before the timer fired re-armed or cleared the
	// deadline; only the deadline for the still-current turn acts.
	if s.phase != phaseActive || seq != s.turnSeq {
		return
	}

	seat := s.current
	cards := s.srv.rules.Choose(s.table, s.hands[seat], s.hasControl())
	if err := s.playLocked(seat, cards); err != nil {
		// The chooser broke its own contract; pass if we can, else stall.
		s.log.Error().Err(err).Stringer("seat", seat).Msg("bot chose an illegal play")
		if passErr := s.playLocked(seat, nil); passErr != nil {
			s.log.Error().Err(passErr).Stringer("seat", seat).Msg("bot could not pass")
		}
	}
}

// removeCards subtracts one occurrence of each played card.
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
