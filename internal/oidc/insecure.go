package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/collabtext/collabtext/pkg/middleware"
)

type unverifiedToken jwt.MapClaims

func (t unverifiedToken) Claims(v interface{}) error {
	b, err := json.Marshal(jwt.MapClaims(t))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// InsecureVerifier accepts provider tokens without checking their signature.
// It still rejects malformed and expired tokens. Enabled only through
// ALLOW_INSECURE_TOKEN when provider discovery fails.
type InsecureVerifier struct {
	parser *jwt.Parser
}

func NewInsecureVerifier() *InsecureVerifier {
	return &InsecureVerifier{parser: jwt.NewParser()}
}

func (v *InsecureVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	if _, _, err := v.parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("unverified parse: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, err
	}
	if exp != nil && exp.Before(time.Now()) {
		return nil, jwt.ErrTokenExpired
	}
	return unverifiedToken(claims), nil
}
