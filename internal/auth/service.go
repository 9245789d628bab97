package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	applog "cashstash/internal/log"
	"cashstash/internal/storage"
)

// RegisterInput mirrors the sign-up form.
type RegisterInput struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Service implements registration, login, logout and profile updates on top
// of a UserStore. Revoked token ids are kept until the token would have
// expired anyway.
type Service struct {
	users    storage.UserStore
	tokens   *TokenIssuer
	revoked  Revocations
	hashCost int
	logger   *applog.Logger
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func NewService(users storage.UserStore, tokens *TokenIssuer, revoked Revocations, logger *applog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Service{
		users:    users,
		tokens:   tokens,
		revoked:  revoked,
		hashCost: bcrypt.DefaultCost,
		logger:   logger.WithComponent(applog.ComponentAuth),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a profile and signs the new user in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.FullName)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, ErrMissingFields
	}
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if len(in.Password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	hash, err := HashPassword(in.Password, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, storage.User{
		FullName:     name,
		Email:        email,
		PasswordHash: hash,
		Role:         storage.RoleUser,
	})
	if errors.Is(err, storage.ErrDuplicateEmail) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		applog.NewFields().WithUser(u.ID).WithOperation(applog.OpRegister).ToSlice()...)
	return s.newSession(u)
}

// Login checks credentials and returns a fresh session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}
	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	ok, err := ComparePassword(u.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		s.logger.WarnContext(ctx, "Login rejected",
			applog.NewFields().WithUser(u.ID).WithErrorType(applog.ErrorTypeAuth).ToSlice()...)
		return nil, ErrInvalidCredentials
	}
	return s.newSession(u)
}

// Logout revokes token. Revoking an already invalid token is an error so
// callers can tell a stale client apart.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl <= 0 {
		return ErrInvalidToken
	}
	if err := s.revoked.Revoke(ctx, claims.Id, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.InfoContext(ctx, "User logged out",
		applog.NewFields().WithUser(claims.Subject).WithOperation(applog.OpLogout).ToSlice()...)
	return nil
}

// Authenticate resolves a bearer token into a session. The profile is
// reloaded so display-name changes show up without a new token.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoked.Revoked(ctx, claims.Id)
	if err != nil {
		return nil, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	u, err := s.users.UserByID(ctx, claims.Subject)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &Session{
		UserID:      u.ID,
		DisplayName: u.FullName,
		Email:       u.Email,
		Token:       token,
		ExpiresAt:   time.Unix(claims.ExpiresAt, 0).UTC(),
	}, nil
}

// UpdateProfile changes the display name and returns the updated session.
func (s *Service) UpdateProfile(ctx context.Context, sess *Session, name string) (*Session, error) {
	if err := Require(sess); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingFields
	}
	u, err := s.users.UpdateDisplayName(ctx, sess.UserID, name)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	next := *sess
	next.DisplayName = u.FullName
	return &next, nil
}

func (s *Service) newSession(u storage.User) (*Session, error) {
	token, claims, err := s.tokens.Issue(u.ID, u.FullName, u.Email)
	if err != nil {
		return nil, err
	}
	return &Session{
		UserID:      u.ID,
		DisplayName: u.FullName,
		Email:       u.Email,
		Token:       token,
		ExpiresAt:   time.Unix(claims.ExpiresAt, 0).UTC(),
	}, nil
}
