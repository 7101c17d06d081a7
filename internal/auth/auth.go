// Package auth manages account records and session tokens. Credential
// records persist under their own key in the durable document store,
// alongside the conversation list.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mod-ship/Mod-ai-assistant/internal/models"
	"github.com/mod-ship/Mod-ai-assistant/internal/storage"
)

var (
	ErrSecretRequired     = errors.New("auth: jwt secret required")
	ErrUserExists         = errors.New("auth: user already exists")
	ErrUsernameRequired   = errors.New("auth: username is required")
	ErrPasswordTooWeak    = errors.New("auth: password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

type RegisterInput struct {
	Username string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

// Service verifies credentials and issues HS256 session tokens. User
// records are mirrored to the durable store on every mutation; persistence
// failures are logged, not raised.
type Service struct {
	secret []byte
	ttl    time.Duration
	kv     storage.KV
	logger *zap.SugaredLogger

	mu    sync.RWMutex
	users map[string]*models.User
}

// NewService loads persisted user records and returns the service.
func NewService(ctx context.Context, kv storage.KV, secret string, ttl time.Duration, logger *zap.SugaredLogger) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	s := &Service{
		secret: []byte(secret),
		ttl:    ttl,
		kv:     kv,
		logger: logger,
		users:  make(map[string]*models.User),
	}

	data, err := kv.Get(ctx, storage.KeyUsers)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return s, nil
		}
		return nil, err
	}

	var users []*models.User
	if err := json.Unmarshal(data, &users); err != nil {
		logger.Warnw("discarding corrupt user document", "error", err)
		return s, nil
	}
	for _, user := range users {
		if user == nil || user.Username == "" {
			continue
		}
		s.users[strings.ToLower(user.Username)] = user
	}

	return s, nil
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if len(strings.TrimSpace(input.Password)) < 6 {
		return nil, ErrPasswordTooWeak
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	key := strings.ToLower(username)

	s.mu.Lock()
	if _, exists := s.users[key]; exists {
		s.mu.Unlock()
		return nil, ErrUserExists
	}
	s.users[key] = user
	s.persistLocked(ctx)
	s.mu.Unlock()

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user.Sanitize()}, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || strings.TrimSpace(input.Password) == "" {
		return nil, ErrInvalidCredentials
	}

	s.mu.RLock()
	user := s.users[strings.ToLower(username)]
	s.mu.RUnlock()

	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.mu.Lock()
	user.UpdatedAt = time.Now().UTC()
	s.persistLocked(ctx)
	s.mu.Unlock()

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user.Sanitize()}, nil
}

func (s *Service) VerifyToken(token string) (*jwt.RegisteredClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *Service) generateToken(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().UTC().Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func (s *Service) persistLocked(ctx context.Context) {
	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}

	data, err := json.Marshal(users)
	if err != nil {
		s.logger.Errorw("marshal user records failed", "error", err)
		return
	}
	if err := s.kv.Set(ctx, storage.KeyUsers, data); err != nil {
		s.logger.Warnw("persist user records failed", "error", err)
	}
}
