package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	Email     string `json:"email,omitempty"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access tokens. Verification here is purely
// cryptographic; callers that need an authoritative answer must also check
// the session store.
type TokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewTokenService(signingKey string, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// TTL returns the configured access token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed access token for the given user and session.
func (s *TokenService) Issue(user User, sessionID uuid.UUID) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:     user.Email,
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates the token signature and expiry and returns its claims.
func (s *TokenService) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Join(ErrInvalidToken, jwt.ErrTokenExpired)
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
