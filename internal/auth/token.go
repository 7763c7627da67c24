package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/authguard/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or type checks
var ErrInvalidToken = errors.New("invalid token")

// TokenExpiries holds the lifetime of each token type
type TokenExpiries struct {
	Session      time.Duration
	Recovery     time.Duration
	Verification time.Duration
}

// TokenManager issues and validates the local provider's JWTs
type TokenManager struct {
	secret   []byte
	issuer   string
	expiries TokenExpiries
	now      func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret, issuer string, expiries TokenExpiries) *TokenManager {
	return &TokenManager{
		secret:   []byte(secret),
		issuer:   issuer,
		expiries: expiries,
		now:      time.Now,
	}
}

// SetNow overrides the time source used for issuing and validating tokens
func (tm *TokenManager) SetNow(now func() time.Time) {
	if now != nil {
		tm.now = now
	}
}

func (tm *TokenManager) expiryFor(tokenType string) (time.Duration, error) {
	switch tokenType {
	case models.TokenTypeSession:
		return tm.expiries.Session, nil
	case models.TokenTypeRecovery:
		return tm.expiries.Recovery, nil
	case models.TokenTypeVerification:
		return tm.expiries.Verification, nil
	default:
		return 0, fmt.Errorf("unknown token type %q", tokenType)
	}
}

// GenerateToken signs a token of tokenType for an account. It returns the
// token and its expiry.
func (tm *TokenManager) GenerateToken(tokenType, accountID, email string) (string, time.Time, error) {
	expiry, err := tm.expiryFor(tokenType)
	if err != nil {
		return "", time.Time{}, err
	}

	now := tm.now()
	expiresAt := now.Add(expiry)
	claims := &models.TokenClaims{
		Type:      tokenType,
		AccountID: accountID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    tm.issuer,
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return signed, expiresAt, nil
}

// ValidateToken verifies a token and checks it has the expected type
func (tm *TokenManager) ValidateToken(tokenString, expectedType string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithTimeFunc(tm.now),
		jwt.WithIssuer(tm.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Type != expectedType {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, expectedType, claims.Type)
	}
	if claims.AccountID == "" {
		return nil, fmt.Errorf("%w: missing account id", ErrInvalidToken)
	}

	return claims, nil
}
