// Package users keeps the in-memory account list behind the login endpoint
// and implements the login use case.
package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/rhuss/qrgate/pkg/auth"
	"github.com/rhuss/qrgate/pkg/debug"
	"github.com/rhuss/qrgate/pkg/observability"
)

// HashCost is the bcrypt cost used for seeded passwords.
const HashCost = bcrypt.DefaultCost

// Login failures. The messages are returned to clients verbatim.
var (
	ErrUserNotFound    = errors.New("User not found")
	ErrInvalidPassword = errors.New("Invalid password")
)

// User is an account. PasswordHash is a bcrypt hash.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
}

// Seed describes an account to create at startup. Exactly one of Password
// and PasswordHash is used; a hash wins when both are set.
type Seed struct {
	ID           string
	Email        string
	Password     string
	PasswordHash string
}

// DefaultSeeds is the development account.
var DefaultSeeds = []Seed{{ID: "1", Email: "test@test.com", Password: "123456"}}

// Store is a concurrency-safe in-memory user repository keyed by email.
type Store struct {
	mu      sync.RWMutex
	byEmail map[string]*User
}

// NewStore creates a Store populated from seeds.
func NewStore(seeds []Seed) (*Store, error) {
	s := &Store{byEmail: make(map[string]*User, len(seeds))}
	for _, seed := range seeds {
		if err := s.Add(seed); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add hashes seed's password when needed and stores the account,
// replacing any account with the same email.
func (s *Store) Add(seed Seed) error {
	if seed.Email == "" {
		return errors.New("user email is required")
	}

	hash := []byte(seed.PasswordHash)
	if len(hash) == 0 {
		if seed.Password == "" {
			return fmt.Errorf("user %s: password or password_hash is required", seed.Email)
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(seed.Password), HashCost)
		if err != nil {
			return fmt.Errorf("hashing password for %s: %w", seed.Email, err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return fmt.Errorf("user %s: invalid password_hash: %w", seed.Email, err)
	}

	id := seed.ID
	if id == "" {
		id = seed.Email
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEmail[normalize(seed.Email)] = &User{ID: id, Email: seed.Email, PasswordHash: hash}
	return nil
}

// FindByEmail returns a copy of the account for email.
func (s *Store) FindByEmail(email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[normalize(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

// Emails lists the stored accounts in sorted order.
func (s *Store) Emails() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byEmail))
	for _, u := range s.byEmail {
		out = append(out, u.Email)
	}
	sort.Strings(out)
	return out
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Service implements the login flow.
type Service struct {
	store   *Store
	issuer  auth.TokenIssuer
	limiter auth.RateLimiter
}

// NewService creates a login Service. limiter may be nil.
func NewService(store *Store, issuer auth.TokenIssuer, limiter auth.RateLimiter) *Service {
	return &Service{store: store, issuer: issuer, limiter: limiter}
}

// Login checks the credentials and returns a signed token. It fails with
// ErrUserNotFound, ErrInvalidPassword or auth.ErrTooManyRequests.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, normalize(email)); err != nil {
			observability.LoginsTotal.WithLabelValues("throttled").Inc()
			return "", err
		}
	}

	u, err := s.store.FindByEmail(email)
	if err != nil {
		observability.LoginsTotal.WithLabelValues("unknown_user").Inc()
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		observability.LoginsTotal.WithLabelValues("bad_password").Inc()
		debug.Log("auth", "password mismatch", "email", u.Email)
		return "", ErrInvalidPassword
	}

	token, err := s.issuer.Issue(&auth.Identity{ID: u.ID, Email: u.Email})
	if err != nil {
		observability.LoginsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	observability.LoginsTotal.WithLabelValues("success").Inc()
	return token, nil
}
