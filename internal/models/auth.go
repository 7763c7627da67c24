package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token types issued by the local identity provider
const (
	TokenTypeSession      = "session"
	TokenTypeRecovery     = "recovery"
	TokenTypeVerification = "verification"
)

// TokenClaims holds the JWT claims issued by the local identity provider
type TokenClaims struct {
	Type      string `json:"type"`
	AccountID string `json:"account_id"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
