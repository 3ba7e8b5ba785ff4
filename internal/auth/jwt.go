// Package auth issues and verifies the bearer tokens used by the sync
// API and carries the authenticated principal through request context.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh-api/internal/model"
)

// TokenKind distinguishes short-lived access tokens from long-lived
// refresh tokens. A refresh token is only good for minting a new
// access token.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// ErrInvalidToken covers every verification failure: bad signature,
// expiry, malformed claims, or wrong token kind.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the decoded identity carried by a verified token.
type Claims struct {
	UserID       uuid.UUID
	Organization uuid.UUID
	Email        string
	Role         model.Role
	Kind         TokenKind
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Tokens is the pair returned by login.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Issue mints an access/refresh pair for the user.
func (i *Issuer) Issue(u *model.User) (Tokens, error) {
	access, err := i.mint(u, TokenAccess, i.AccessTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := i.mint(u, TokenRefresh, i.RefreshTTL)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{Access: access, Refresh: refresh}, nil
}

// IssueAccess mints a fresh access token, used by the refresh endpoint.
func (i *Issuer) IssueAccess(u *model.User) (string, error) {
	return i.mint(u, TokenAccess, i.AccessTTL)
}

func (i *Issuer) mint(u *model.User, kind TokenKind, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":        u.ID.String(),
		"org":        u.Organization.String(),
		"email":      u.Email,
		"role":       string(u.Role),
		"token_type": string(kind),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.Secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify parses and validates a token of the expected kind.
func (i *Issuer) Verify(raw string, kind TokenKind) (*Claims, error) {
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.Secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	kindStr, _ := claims["token_type"].(string)
	if TokenKind(kindStr) != kind {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}
	orgStr, _ := claims["org"].(string)
	org, err := uuid.Parse(orgStr)
	if err != nil {
		return nil, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return &Claims{
		UserID:       userID,
		Organization: org,
		Email:        email,
		Role:         model.Role(role),
		Kind:         TokenKind(kindStr),
	}, nil
}
