package authenticator

import (
	"errors"
	"fmt"
	"time"

	"github.com/curaious/teamboard/internal/access"
	"github.com/curaious/teamboard/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "teamboard"

// TokenType is carried in the typ claim so a refresh token never passes as an access token.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Type   TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Tokens is the pair handed out at sign-up, sign-in and refresh.
type Tokens struct {
	AccessToken      string    `json:"access_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Authenticator issues and verifies HS256 access and refresh tokens.
type Authenticator struct {
	secret     []byte
	ttl        time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func New(conf *config.Config) (*Authenticator, error) {
	if conf.JWT_SECRET == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	return &Authenticator{
		secret:     []byte(conf.JWT_SECRET),
		ttl:        conf.JWT_TTL,
		refreshTTL: conf.JWT_REFRESH_TTL,
		now:        time.Now,
	}, nil
}

// IssueTokens signs a fresh access and refresh token for the user.
func (a *Authenticator) IssueTokens(userID uuid.UUID, email string) (*Tokens, error) {
	accessToken, expiresAt, err := a.sign(userID, email, TokenAccess, a.ttl)
	if err != nil {
		return nil, err
	}

	refresh, refreshExpiresAt, err := a.sign(userID, email, TokenRefresh, a.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &Tokens{
		AccessToken:      accessToken,
		ExpiresAt:        expiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func (a *Authenticator) sign(userID uuid.UUID, email string, typ TokenType, ttl time.Duration) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		UserID: userID.String(),
		Email:  email,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", typ, err)
	}

	return token, expiresAt, nil
}

// VerifyAccessToken parses token and returns the identity it carries.
func (a *Authenticator) VerifyAccessToken(token string) (*access.Identity, error) {
	return a.verify(token, TokenAccess)
}

// VerifyRefreshToken is VerifyAccessToken for refresh tokens.
func (a *Authenticator) VerifyRefreshToken(token string) (*access.Identity, error) {
	return a.verify(token, TokenRefresh)
}

func (a *Authenticator) verify(token string, typ TokenType) (*access.Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid || claims.Type != typ {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &access.Identity{UserID: userID, Email: claims.Email}, nil
}
