package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Card identifies a single playing card on the wire, e.g. "3♣" or "T♦".
// The client treats card ids as opaque; only the server's rules ever
// interpret them.
type Card string

// Auth is the session credential issued by the server when a player joins.
// It is the sole proof of identity: the client resends it on every action
// request as a bearer token and never persists it anywhere.
type Auth struct {
	Seat       Seat      `json:"seat"`
	SessionID  uuid.UUID `json:"sessionId"`
	UserSecret uuid.UUID `json:"userSecret"`
}

const bearerScheme = "Bearer"

// Token serializes the credential as base64(JSON), the payload carried in
// the Authorization header.
func (a Auth) Token() string {
	data, err := json.Marshal(a)
	if err != nil {
		// Auth contains only a seat and two UUIDs.
		panic(fmt.Sprintf("protocol: marshal auth: %v", err))
	}
	return base64.StdEncoding.EncodeToString(data)
}

// ParseToken decodes a bearer token back into the credential.
func ParseToken(token string) (Auth, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Auth{}, fmt.Errorf("protocol: decode auth token: %w", err)
	}
	var a Auth
	if err := json.Unmarshal(data, &a); err != nil {
		return Auth{}, fmt.Errorf("protocol: parse auth token: %w", err)
	}
	return a, nil
}

// SetAuthHeader writes the credential into h as
// "Authorization: Bearer <token>".
func (a Auth) SetAuthHeader(h http.Header) {
	h.Set("Authorization", bearerScheme+" "+a.Token())
}

// AuthFromHeader extracts and decodes the credential from h. Both sides use
// it: the client reads the credential off the join response, the server
// reads it off every action request.
func AuthFromHeader(h http.Header) (Auth, error) {
	value := h.Get("Authorization")
	if value == "" {
		return Auth{}, fmt.Errorf("protocol: missing Authorization header")
	}
	scheme, token, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return Auth{}, fmt.Errorf("protocol: malformed Authorization header")
	}
	return ParseToken(token)
}
