// Package auth signs and parses the session tokens that carry the
// authenticated principal between requests.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/assurminut/crm-identity/internal/core/domain"
)

// DefaultIssuer is the iss claim of every token this service signs.
const DefaultIssuer = "crm-identity"

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload. The subject is the account ID and the JWT ID
// names the session so it can be revoked before it expires.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewAccessToken signs an HS256 token for account valid for ttl.
func NewAccessToken(secret string, ttl time.Duration, account *domain.Account) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Username: account.Username,
		Role:     account.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   account.ID,
			Issuer:    DefaultIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Session is a verified token.
type Session struct {
	// Principal carries only the ID, username, and role from the token; the
	// account is not re-read.
	Principal *domain.Account
	TokenID   string
	ExpiresAt time.Time
}

// ParseToken validates tokenString and returns the principal it names.
func ParseToken(secret, tokenString string) (*domain.Account, error) {
	session, err := Parse(secret, tokenString)
	if err != nil {
		return nil, err
	}
	return session.Principal, nil
}

// Parse validates tokenString and returns the session it describes.
func Parse(secret, tokenString string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(DefaultIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &Session{
		Principal: &domain.Account{
			ID:       claims.Subject,
			Username: claims.Username,
			Role:     role,
			Active:   true,
		},
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
