package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"chopmeet-service/internal/models"
	"chopmeet-service/internal/repositories"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
)

// Service is the in-process identity provider: account lifecycle plus
// bearer-token issue, validation and revocation.
type Service struct {
	users   repositories.UserRepository
	revoker Revoker
	secret  []byte
	ttl     time.Duration
}

// NewService constructs the identity service.
func NewService(users repositories.UserRepository, revoker Revoker, secret string, ttl time.Duration) *Service {
	return &Service{users: users, revoker: revoker, secret: []byte(secret), ttl: ttl}
}

// SignUp registers an account and signs the new user in.
func (s *Service) SignUp(ctx context.Context, email string, displayName string, password string) (models.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, "", err
	}

	user, err := s.users.CreateUser(ctx, email, displayName, string(hash))
	if err != nil {
		return models.User{}, "", err
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

// SignIn verifies credentials and issues a bearer token.
func (s *Service) SignIn(ctx context.Context, email string, password string) (models.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.User{}, "", ErrInvalidCredentials
		}
		return models.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

// SignOut revokes the presented token for its remaining lifetime.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.parseToken(token)
	if err != nil {
		return ErrInvalidToken
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	return s.revoker.Revoke(ctx, claims.ID, remaining)
}

// ValidateToken verifies the token and returns the authenticated user id.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", ErrInvalidToken
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// GetUser fetches the account behind a user id.
func (s *Service) GetUser(ctx context.Context, userID string) (models.User, error) {
	return s.users.GetUser(ctx, userID)
}

// UpdateDisplayName changes the caller's profile name.
func (s *Service) UpdateDisplayName(ctx context.Context, userID string, displayName string) error {
	return s.users.UpdateDisplayName(ctx, userID, displayName)
}

func (s *Service) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
