package user

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"libraryapi/internal/platform/clock"
	"libraryapi/internal/platform/crypto"
)

type Service struct {
	repo Repository
	now  clock.Clock
}

func NewService(repo Repository, now clock.Clock) *Service {
	if now == nil {
		now = clock.Now
	}
	return &Service{repo: repo, now: now}
}

// NewUser is the input for registering an account.
type NewUser struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// Register hashes the password and stores the account. Emails are unique
// case-insensitively.
func (s *Service) Register(ctx context.Context, in NewUser) (User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return User{}, ErrAlreadyExists
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	role := in.Role
	if role == "" {
		role = RoleStudent
	}
	now := s.now()
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	return *u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) List(ctx context.Context, role string, limit, offset int) ([]User, int, error) {
	return s.repo.List(ctx, role, limit, offset)
}

// Exists answers the lookup the loan service needs before a borrow.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}
