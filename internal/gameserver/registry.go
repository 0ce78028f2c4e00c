package gameserver

import (
	"sync"

	"github.com/google/uuid"

	"pusoy/internal/protocol"
)

// sessionRegistry maps live session ids to their tables.
type sessionRegistry struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*session
}

func (r *sessionRegistry) get(id uuid.UUID) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byID[id]
	return sess, ok
}

func (r *sessionRegistry) evict(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// join seats the caller in the requested session when possible. When the
// requested session is gone, full, or already playing, the caller lands in
// a fresh lobby instead and the reason arrives as a retry event on their
// stream.
func (r *sessionRegistry) join(
	srv *Server,
	requested *uuid.UUID,
) (*session, protocol.Auth, <-chan protocol.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var retry error
	if requested != nil {
		if sess, ok := r.byID[*requested]; ok {
			auth, events, err := sess.join(nil)
			if err == nil {
				return sess, auth, events, nil
			}
			retry = err
		} else {
			retry = errNoSession
		}
	}

	sess := newSession(srv, uuid.New())
	auth, events, err := sess.join(retry)
	if err != nil {
		// A freshly made lobby cannot refuse its first player.
		return nil, protocol.Auth{}, nil, err
	}
	r.byID[sess.id] = sess
	return sess, auth, events, nil
}
