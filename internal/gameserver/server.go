package gameserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"pusoy/internal/jsonseq"
	"pusoy/internal/protocol"
)

// DefaultMaxActionTimer caps the host-configurable per-turn timer; requests
// beyond it disable the timer instead of failing.
const DefaultMaxActionTimer = 1000 * time.Second

// DefaultBotActionTimer is how long a bot seat waits before acting.
const DefaultBotActionTimer = time.Second

// Config assembles a Server.
type Config struct {
	// Rules validates plays and chooses bot moves. Defaults to
	// PermissiveRules; real deployments supply a rule engine.
	Rules Rules
	// Dealer produces each round's hands. Defaults to ShuffleDealer.
	Dealer Dealer
	// Clock drives turn deadlines. Defaults to the real clock.
	Clock          clockwork.Clock
	MaxActionTimer time.Duration
	BotActionTimer time.Duration
	Logger         zerolog.Logger
}

// Server owns every live session and serves the protocol under /api.
type Server struct {
	rules          Rules
	deal           Dealer
	clock          clockwork.Clock
	maxActionTimer time.Duration
	botActionTimer time.Duration
	log            zerolog.Logger

	sessions sessionRegistry
}

// NewServer builds a Server from cfg, filling in defaults.
func NewServer(cfg Config) *Server {
	if cfg.Rules == nil {
		cfg.Rules = PermissiveRules{}
	}
	if cfg.Dealer == nil {
		cfg.Dealer = ShuffleDealer
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.MaxActionTimer == 0 {
		cfg.MaxActionTimer = DefaultMaxActionTimer
	}
	if cfg.BotActionTimer == 0 {
		cfg.BotActionTimer = DefaultBotActionTimer
	}

	return &Server{
		rules:          cfg.Rules,
		deal:           cfg.Dealer,
		clock:          cfg.Clock,
		maxActionTimer: cfg.MaxActionTimer,
		botActionTimer: cfg.BotActionTimer,
		log:            cfg.Logger,
		sessions:       sessionRegistry{byID: make(map[uuid.UUID]*session)},
	}
}

// Handler returns the full HTTP stack: chi routing under /api, CORS with
// the Authorization header exposed (browser clients cannot read the join
// credential without it), and h2c so streamed responses multiplex.
func (srv *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/join", srv.handleJoin)
		r.Put("/timer", srv.handleTimer)
		r.Post("/start", srv.handleStart)
		r.Post("/play", srv.handlePlay)
		r.Post("/playable", srv.handlePlayable)
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Authorization"},
	})

	return h2c.NewHandler(c.Handler(r), &http2.Server{})
}

// handleJoin seats the caller and streams session events until the client
// goes away.
func (srv *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var requested *uuid.UUID
	if raw := r.URL.Query().Get("sessionId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, errNoSession)
			return
		}
		requested = &id
	}

	sess, auth, events, err := srv.sessions.join(srv, requested)
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() {
		if sess.disconnect(auth) {
			srv.sessions.evict(sess.id)
			srv.log.Info().Str("session_id", sess.id.String()).Msg("session empty, evicted")
		}
	}()

	auth.SetAuthHeader(w.Header())
	w.Header().Set("Content-Type", jsonseq.ContentType)
	w.Header().Set("Cache-Control", "no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	enc := jsonseq.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			raw, err := protocol.EncodeEvent(ev)
			if err != nil {
				log.Error().Err(err).Str("event", ev.Name()).Msg("encode event")
				return
			}
			if err := enc.Encode(raw); err != nil {
				return
			}
		}
	}
}

func (srv *Server) handleTimer(w http.ResponseWriter, r *http.Request) {
	sess, auth, err := srv.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body protocol.TimerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed timer request", http.StatusBadRequest)
		return
	}
	if err := sess.setTimer(auth, body.Millis); err != nil {
		writeError(w, err)
	}
}

func (srv *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, auth, err := srv.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sess.start(auth); err != nil {
		writeError(w, err)
	}
}

func (srv *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	srv.handlePlayish(w, r, (*session).humanPlay)
}

func (srv *Server) handlePlayable(w http.ResponseWriter, r *http.Request) {
	srv.handlePlayish(w, r, (*session).playable)
}

func (srv *Server) handlePlayish(
	w http.ResponseWriter,
	r *http.Request,
	op func(*session, protocol.Auth, []protocol.Card) error,
) {
	sess, auth, err := srv.authenticate(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body protocol.PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed play request", http.StatusBadRequest)
		return
	}
	if err := op(sess, auth, body.Cards); err != nil {
		writeError(w, err)
	}
}

// authenticate resolves the bearer credential on an action request to its
// live session.
func (srv *Server) authenticate(r *http.Request) (*session, protocol.Auth, error) {
	auth, err := protocol.AuthFromHeader(r.Header)
	if err != nil {
		return nil, protocol.Auth{}, errBadAuth
	}
	sess, ok := srv.sessions.get(auth.SessionID)
	if !ok {
		return nil, protocol.Auth{}, errNoSession
	}
	return sess, auth, nil
}

// writeError maps session errors onto plain-text responses; the body is
// what clients show the player.
func writeError(w http.ResponseWriter, err error) {
	var api *apiError
	if errors.As(err, &api) {
		http.Error(w, api.msg, api.status)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
