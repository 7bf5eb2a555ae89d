// Package auth resolves a player identity during the WebSocket handshake.
// With a configured secret the client presents a signed token; without one
// the handshake falls back to plain query parameters.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	jwt "github.com/form3tech-oss/jwt-go"
)

var (
	ErrMissingIdentity = errors.New("auth: player identity required")
	ErrInvalidToken    = errors.New("auth: invalid token")
)

// DefaultPlayerName is used when the client does not supply a display name.
const DefaultPlayerName = "Player"

// Identity is the authenticated player behind a connection.
type Identity struct {
	PlayerID   string
	PlayerName string
}

// FromRequest extracts the identity from a handshake request. When secret
// is non-empty a `token` query parameter is required and verified;
// otherwise `playerId` (and optional `playerName`) query parameters are
// trusted as-is.
func FromRequest(r *http.Request, secret []byte) (Identity, error) {
	query := r.URL.Query()

	if len(secret) > 0 {
		return Verify(query.Get("token"), secret)
	}

	id := Identity{
		PlayerID:   query.Get("playerId"),
		PlayerName: query.Get("playerName"),
	}
	if id.PlayerID == "" {
		return Identity{}, ErrMissingIdentity
	}
	if id.PlayerName == "" {
		id.PlayerName = DefaultPlayerName
	}
	return id, nil
}

// Verify parses and validates a signed identity token.
func Verify(tokenString string, secret []byte) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrMissingIdentity
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	id := Identity{}
	if pid, ok := claims["pid"].(string); ok {
		id.PlayerID = pid
	}
	if name, ok := claims["name"].(string); ok {
		id.PlayerName = name
	}
	if id.PlayerID == "" {
		return Identity{}, ErrMissingIdentity
	}
	if id.PlayerName == "" {
		id.PlayerName = DefaultPlayerName
	}
	return id, nil
}

// Mint signs an identity token; used by tools and tests.
func Mint(id Identity, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"pid":  id.PlayerID,
		"name": id.PlayerName,
		"exp":  time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
