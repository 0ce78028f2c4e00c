package gameserver

import "net/http"

// apiError is a request failure with a wire-visible explanation. The body
// text is what clients surface to the player, so the messages stay short
// and declarative.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

var (
	errBadAuth    = &apiError{http.StatusUnauthorized, "authentication not valid for the player"}
	errNoSession  = &apiError{http.StatusBadRequest, "request session not found"}
	errAbsent     = &apiError{http.StatusBadRequest, "player must be present in the game"}
	errBadPhase   = &apiError{http.StatusBadRequest, "request must be applicable to current game phase"}
	errNotHost    = &apiError{http.StatusForbidden, "requests must come from the host"}
	errFull       = &apiError{http.StatusBadRequest, "can only join sessions that aren't full"}
	errNotCurrent = &apiError{http.StatusBadRequest, "this request should be made by the current player"}
)
