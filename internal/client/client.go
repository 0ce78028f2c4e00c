// Package client implements the player side of the pusoy session protocol:
// the join/auth handshake, the server-push event stream, and the
// authenticated action requests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pusoy/internal/jsonseq"
	"pusoy/internal/protocol"
)

// Config carries the dial-time knobs. The zero value is not usable; use
// DefaultConfig.
type Config struct {
	// HTTPClient must not set a global timeout: the join response body is
	// a stream that stays open for the whole session. Per-request
	// deadlines belong on the contexts of individual calls.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// DefaultConfig returns the configuration the binaries use.
func DefaultConfig() Config {
	return Config{
		HTTPClient: &http.Client{},
		Logger:     log.Logger,
	}
}

// JoinError is a non-success response from the join endpoint. Body carries
// the server's diagnostic text.
type JoinError struct {
	Status int
	Body   string
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join rejected: status %d: %s", e.Status, e.Body)
}

// RequestError is a non-success response from an authenticated action
// endpoint. The session and its event stream remain usable; the Body text
// is meant to be surfaced to the player.
type RequestError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s rejected: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Session is one joined seat at one table. It owns the bearer credential
// and the event stream. Event consumption is strictly sequential; action
// requests are independent of the stream and may happen from other
// goroutines.
type Session struct {
	cfg     Config
	baseURL string
	auth    protocol.Auth
	body    io.ReadCloser
	dec     *jsonseq.Decoder
	log     zerolog.Logger
}

// Dial joins a session. A non-empty sessionID asks to join that existing
// session; when that join fails, Dial falls back exactly once to creating a
// brand-new session. The stream stays open until ctx is cancelled or the
// session is closed.
func Dial(ctx context.Context, baseURL, sessionID string, cfg Config) (*Session, error) {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	baseURL = strings.TrimRight(baseURL, "/")

	s, err := join(ctx, baseURL, sessionID, cfg)
	if err != nil && sessionID != "" {
		cfg.Logger.Warn().
			Err(err).
			Str("session_id", sessionID).
			Msg("could not join requested session, creating a new one")
		s, err = join(ctx, baseURL, "", cfg)
	}
	return s, err
}

func join(ctx context.Context, baseURL, sessionID string, cfg Config) (*Session, error) {
	joinURL := baseURL + "/api/join"
	if sessionID != "" {
		joinURL += "?sessionId=" + url.QueryEscape(sessionID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL, nil)
	if err != nil {
		return nil, fmt.Errorf("client: build join request: %w", err)
	}
	req.Header.Set("Accept", jsonseq.ContentType)

	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: join request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &JoinError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	auth, err := protocol.AuthFromHeader(resp.Header)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("client: join response credential: %w", err)
	}

	logger := cfg.Logger.With().
		Str("session_id", auth.SessionID.String()).
		Stringer("seat", auth.Seat).
		Logger()
	logger.Info().Msg("joined session")

	return &Session{
		cfg:     cfg,
		baseURL: baseURL,
		auth:    auth,
		body:    resp.Body,
		dec:     jsonseq.NewDecoder(resp.Body),
		log:     logger,
	}, nil
}

// Auth returns the session credential.
func (s *Session) Auth() protocol.Auth { return s.auth }

// SessionID returns the id of the joined session, e.g. for building a
// shareable rejoin URL.
func (s *Session) SessionID() uuid.UUID { return s.auth.SessionID }

// Seat returns the absolute seat the server assigned to this player.
func (s *Session) Seat() protocol.Seat { return s.auth.Seat }

// RejoinURL is the address a player (or a friend) can use to land in this
// same session again.
func (s *Session) RejoinURL() string {
	return s.baseURL + "/?sessionId=" + s.auth.SessionID.String()
}

// Close tears down the event stream. The server treats it as a disconnect
// and hands the seat to a bot.
func (s *Session) Close() error {
	return s.body.Close()
}

// Next blocks for the next event in server-send order. It returns io.EOF
// when the server closes the stream. Framing errors and unknown event names
// are fatal: the decoder refuses to continue past them, because skipping
// events would desynchronize local state for the rest of the session.
func (s *Session) Next() (protocol.Event, error) {
	raw, err := s.dec.Next()
	if err != nil {
		return nil, err
	}
	ev, err := protocol.DecodeEvent(raw)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("event", ev.Name()).Msg("event received")
	return ev, nil
}

// do issues one authenticated action request. Responses are fully consumed;
// a non-2xx status becomes a *RequestError carrying the body text.
func (s *Session) do(ctx context.Context, method, endpoint string, body any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal %s body: %w", endpoint, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, payload)
	if err != nil {
		return fmt.Errorf("client: build %s request: %w", endpoint, err)
	}
	s.auth.SetAuthHeader(req.Header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     strings.TrimSpace(string(text)),
		}
	}
	return nil
}

// Play submits cards as this seat's play. An empty (or nil) slice is a pass.
func (s *Session) Play(ctx context.Context, cards []protocol.Card) error {
	if cards == nil {
		cards = []protocol.Card{}
	}
	return s.do(ctx, http.MethodPost, "/api/play", protocol.PlayRequest{Cards: cards})
}

// Pass submits an empty play.
func (s *Session) Pass(ctx context.Context) error {
	return s.Play(ctx, nil)
}

// Playable asks the server whether cards would currently be a legal play,
// without playing them. It returns nil for "yes"; a *RequestError's Body is
// the server's explanation of "no". Purely advisory.
func (s *Session) Playable(ctx context.Context, cards []protocol.Card) error {
	if cards == nil {
		cards = []protocol.Card{}
	}
	return s.do(ctx, http.MethodPost, "/api/playable", protocol.PlayRequest{Cards: cards})
}

// SetTimer configures the per-turn action timer (host only). A nil millis
// disables it.
func (s *Session) SetTimer(ctx context.Context, millis *int64) error {
	return s.do(ctx, http.MethodPut, "/api/timer", protocol.TimerRequest{Millis: millis})
}

// Start begins the game (host only); the server answers with a deal event
// on the stream.
func (s *Session) Start(ctx context.Context) error {
	return s.do(ctx, http.MethodPost, "/api/start", nil)
}
