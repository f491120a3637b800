package auth

import (
	"context"
	"errors"
	"time"

	"libraryapi/internal/platform/crypto"
	"libraryapi/internal/user"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
)

const accessTokenTTL = 12 * time.Hour

// UserLookup is the slice of the user service login needs.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

// Revoker stores revoked token ids.
type Revoker interface {
	AddToken(ctx context.Context, jti, userID string, expiresAt time.Time) error
}

type Service struct {
	secret  string
	users   UserLookup
	revoker Revoker
}

func NewService(secret string, users UserLookup, revoker Revoker) *Service {
	return &Service{secret: secret, users: users, revoker: revoker}
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"accessToken"`
	ExpiresIn   int       `json:"expiresIn"`
	User        user.User `json:"user"`
}

func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil || !crypto.VerifyPassword(u.PasswordHash, password) {
		return Token{}, ErrUnauthorized
	}

	accessToken, _, err := crypto.GenerateToken(s.secret, u.ID, u.Role, accessTokenTTL)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: accessToken, ExpiresIn: int(accessTokenTTL.Seconds()), User: u}, nil
}

func (s *Service) Logout(ctx context.Context, token string, userID string) error {
	claims, err := crypto.ParseToken(s.secret, token)
	if err != nil || claims.UserID() != userID {
		return ErrUnauthorized
	}

	expiresAt := time.Now().Add(accessTokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return s.revoker.AddToken(ctx, claims.ID, userID, expiresAt)
}
