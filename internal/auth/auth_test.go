package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Mint(Identity{PlayerID: "p1", PlayerName: "One"}, secret, time.Hour)
	require.NoError(t, err)

	id, err := Verify(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "p1", id.PlayerID)
	assert.Equal(t, "One", id.PlayerName)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := Mint(Identity{PlayerID: "p1"}, []byte("right"), time.Hour)
	require.NoError(t, err)

	_, err = Verify(token, []byte("wrong"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	token, err := Mint(Identity{PlayerID: "p1"}, []byte("s"), -time.Minute)
	require.NoError(t, err)

	_, err = Verify(token, []byte("s"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestFromRequestQueryParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?playerId=p1&playerName=One", nil)
	id, err := FromRequest(r, nil)
	require.NoError(t, err)
	assert.Equal(t, Identity{PlayerID: "p1", PlayerName: "One"}, id)

	r = httptest.NewRequest("GET", "/ws?playerId=p2", nil)
	id, err = FromRequest(r, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPlayerName, id.PlayerName)

	r = httptest.NewRequest("GET", "/ws", nil)
	_, err = FromRequest(r, nil)
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestFromRequestRequiresTokenWithSecret(t *testing.T) {
	secret := []byte("s")
	r := httptest.NewRequest("GET", "/ws?playerId=p1", nil)
	_, err := FromRequest(r, secret)
	assert.ErrorIs(t, err, ErrMissingIdentity)

	token, err := Mint(Identity{PlayerID: "p1", PlayerName: "One"}, secret, time.Hour)
	require.NoError(t, err)
	r = httptest.NewRequest("GET", "/ws?token="+token, nil)
	id, err := FromRequest(r, secret)
	require.NoError(t, err)
	assert.Equal(t, "p1", id.PlayerID)
}
