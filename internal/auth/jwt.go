package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the subset of the auth service's access token we rely on. The
// subject is the user id.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type JWTAuthenticator struct {
	secret string
	aud    string
	iss    string
}

// NewJWTAuthenticator verifies HS256 tokens signed with secret. Empty aud or
// iss disable that check.
func NewJWTAuthenticator(secret, aud, iss string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret, aud: aud, iss: iss}
}

func (a *JWTAuthenticator) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	}
	if a.aud != "" {
		opts = append(opts, jwt.WithAudience(a.aud))
	}
	if a.iss != "" {
		opts = append(opts, jwt.WithIssuer(a.iss))
	}
	return opts
}

// ValidateAccessToken checks signature, expiry, audience and issuer and
// returns the claims.
func (a *JWTAuthenticator) ValidateAccessToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.secret), nil
	}, a.parserOptions()...)
	if err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidSubject
	}
	return claims, nil
}

// IssueAccessToken signs a token the way the auth service does. Used by
// dirctl for local development and by tests.
func (a *JWTAuthenticator) IssueAccessToken(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.aud != "" {
		claims.Audience = jwt.ClaimStrings{a.aud}
	}
	if a.iss != "" {
		claims.Issuer = a.iss
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.secret))
}
