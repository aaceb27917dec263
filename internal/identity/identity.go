// Package identity is the account collaborator: registration and credential
// checks. Passwords are stored only as bcrypt hashes.
package identity

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"cardbattle/internal/domain"
)

var (
	ErrUserExists    = errors.New("identity: user already exists")
	ErrUserNotFound  = errors.New("identity: user not found")
	ErrWrongPassword = errors.New("identity: wrong password")
)

type Service struct {
	mu    sync.RWMutex
	users map[string][]byte
}

func NewService() *Service {
	return &Service{users: make(map[string][]byte)}
}

func (s *Service) Register(username, password string) error {
	if err := domain.ValidateUsername(username); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return ErrUserExists
	}
	s.users[username] = hash
	log.Info().Str("module", "identity").Str("username", username).Msg("user registered")
	return nil
}

func (s *Service) Authenticate(username, password string) error {
	s.mu.RLock()
	hash, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}
