package app

import (
	"strings"

	iauth "github.com/charlesng35/opsdeck/internal/auth"
)

// JWTServiceConfig converts the auth configuration into the auth package representation.
func (a AuthConfig) JWTServiceConfig() iauth.JWTConfig {
	return iauth.JWTConfig{
		Secret:         strings.TrimSpace(a.JWT.Secret),
		Issuer:         strings.TrimSpace(a.JWT.Issuer),
		AccessTokenTTL: a.JWT.TTL,
	}
}
