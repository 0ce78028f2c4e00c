package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pusoy/internal/game"
	"pusoy/internal/gameserver"
	"pusoy/internal/protocol"
)

func testConfig() Config {
	return Config{
		HTTPClient: &http.Client{},
		Logger:     zerolog.Nop(),
	}
}

// next fails the test unless an event arrives promptly.
func next(t *testing.T, s *Session) protocol.Event {
	t.Helper()
	type result struct {
		ev  protocol.Event
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ev, err := s.Next()
		ch <- result{ev, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("Next: %v", r.err)
		}
		return r.ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestJoinPlayRoundTrip(t *testing.T) {
	// The dealer adapts to whatever seat the player lands in, so the
	// human always opens while the three bot seats idle on a timer that
	// never fires during the test.
	var (
		seatMu sync.Mutex
		mySeat protocol.Seat
	)
	dealer := func() [4][]protocol.Card {
		seatMu.Lock()
		human := mySeat
		seatMu.Unlock()
		var hands [4][]protocol.Card
		for _, seat := range protocol.Seats {
			hands[seat] = []protocol.Card{"9♦", "8♦", "7♦"}
		}
		hands[human] = []protocol.Card{"3♣", "A♠", "2♥"}
		return hands
	}

	srv := gameserver.NewServer(gameserver.Config{
		Dealer:         dealer,
		BotActionTimer: time.Hour,
		Logger:         zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := Dial(ctx, ts.URL, "", testConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()
	seatMu.Lock()
	mySeat = s.Seat()
	seatMu.Unlock()

	auth := s.Auth()
	if auth.SessionID == (uuid.UUID{}) || auth.UserSecret == (uuid.UUID{}) {
		t.Fatalf("incomplete credential: %+v", auth)
	}

	st := game.NewState()
	applyNext := func(wantName string) []game.Patch {
		t.Helper()
		ev := next(t, s)
		if ev.Name() != wantName {
			t.Fatalf("event = %s, want %s", ev.Name(), wantName)
		}
		var patches []game.Patch
		st, patches, err = game.Apply(st, ev)
		if err != nil {
			t.Fatalf("apply %s: %v", wantName, err)
		}
		return patches
	}

	applyNext("welcome")
	if st.MySeat != mySeat {
		t.Fatalf("welcome seat %v, credential seat %v", st.MySeat, mySeat)
	}
	applyNext("host")
	if !st.Host {
		t.Fatal("host flag not set")
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	applyNext("deal")
	if want := []protocol.Card{"3♣", "A♠", "2♥"}; !slices.Equal(st.Hand, want) {
		t.Fatalf("hand after deal = %v, want %v", st.Hand, want)
	}
	if st.Seat(mySeat).Load != 3 {
		t.Fatalf("load after deal = %d", st.Seat(mySeat).Load)
	}

	turn := next(t, s).(protocol.Turn)
	if turn.Seat != mySeat || !turn.Control {
		t.Fatalf("opening turn = %+v, want own seat with control", turn)
	}
	st, _, err = game.Apply(st, turn)
	if err != nil {
		t.Fatalf("apply turn: %v", err)
	}

	// Advisory dry-run before committing the play.
	if err := s.Playable(ctx, []protocol.Card{"A♠"}); err != nil {
		t.Fatalf("Playable: %v", err)
	}

	if err := s.Play(ctx, []protocol.Card{"A♠"}); err != nil {
		t.Fatalf("Play: %v", err)
	}
	applyNext("play")
	if want := []protocol.Card{"3♣", "2♥"}; !slices.Equal(st.Hand, want) {
		t.Fatalf("hand after play = %v, want %v", st.Hand, want)
	}
	if st.Seat(mySeat).Load != 2 {
		t.Fatalf("load after play = %d", st.Seat(mySeat).Load)
	}
	if !slices.Equal(st.Table, []protocol.Card{"A♠"}) {
		t.Fatalf("table = %v", st.Table)
	}

	// The turn moved to a bot seat; acting out of turn is refused with a
	// readable explanation, and the session survives it.
	applyNext("turn")
	err = s.Play(ctx, []protocol.Card{"2♥"})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("out-of-turn play error = %v", err)
	}
	if reqErr.Status != http.StatusBadRequest || reqErr.Body == "" {
		t.Fatalf("request error = %+v", reqErr)
	}
}

func TestDialFallsBackOnceWithoutSessionID(t *testing.T) {
	joins := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/join", func(w http.ResponseWriter, r *http.Request) {
		joins++
		if r.URL.Query().Get("sessionId") != "" {
			http.Error(w, "request session not found", http.StatusBadRequest)
			return
		}
		auth := protocol.Auth{Seat: protocol.East, SessionID: uuid.New(), UserSecret: uuid.New()}
		auth.SetAuthHeader(w.Header())
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "\x1e{\"event\":\"welcome\",\"data\":{\"seat\":\"east\"}}\n")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	s, err := Dial(context.Background(), ts.URL, uuid.NewString(), testConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()

	if joins != 2 {
		t.Fatalf("join attempts = %d, want 2", joins)
	}
	if s.Seat() != protocol.East {
		t.Fatalf("seat = %v", s.Seat())
	}
	if ev := next(t, s); ev.Name() != "welcome" {
		t.Fatalf("first event = %s", ev.Name())
	}
}

func TestDialSurfacesJoinError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "the house is on fire", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := Dial(context.Background(), ts.URL, "", testConfig())
	var joinErr *JoinError
	if !errors.As(err, &joinErr) {
		t.Fatalf("error = %v, want *JoinError", err)
	}
	if joinErr.Status != http.StatusServiceUnavailable || joinErr.Body != "the house is on fire" {
		t.Fatalf("join error = %+v", joinErr)
	}
}

func TestDialRejectsMissingCredential(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	if _, err := Dial(context.Background(), ts.URL, "", testConfig()); err == nil {
		t.Fatal("expected error for join response without Authorization header")
	}
}

func TestUnknownStreamEventIsFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := protocol.Auth{Seat: protocol.North, SessionID: uuid.New(), UserSecret: uuid.New()}
		auth.SetAuthHeader(w.Header())
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "\x1e{\"event\":\"username\",\"data\":{}}\n")
	}))
	defer ts.Close()

	s, err := Dial(context.Background(), ts.URL, "", testConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()

	_, err = s.Next()
	var unknown *protocol.UnknownEventError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want *UnknownEventError", err)
	}
}

func TestRejoinURLCarriesSessionID(t *testing.T) {
	srv := gameserver.NewServer(gameserver.Config{Logger: zerolog.Nop()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	s, err := Dial(context.Background(), ts.URL, "", testConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()

	want := ts.URL + "/?sessionId=" + s.SessionID().String()
	if got := s.RejoinURL(); got != want {
		t.Fatalf("RejoinURL = %q, want %q", got, want)
	}
}
