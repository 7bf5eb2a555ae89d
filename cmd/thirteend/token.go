package main

import (
	"fmt"
	"time"

	"thirteen/internal/auth"
)

// TokenCmd mints a signed connect token, for use against a server running
// with auth_secret configured.
type TokenCmd struct {
	Secret     string        `kong:"required,help='Shared auth secret'"`
	PlayerID   string        `kong:"required,name='player-id',help='Player id to embed'"`
	PlayerName string        `kong:"name='player-name',default='Player',help='Display name to embed'"`
	TTL        time.Duration `kong:"default='2h',help='Token lifetime'"`
}

func (c *TokenCmd) Run() error {
	token, err := auth.Mint(auth.Identity{
		PlayerID:   c.PlayerID,
		PlayerName: c.PlayerName,
	}, []byte(c.Secret), c.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
