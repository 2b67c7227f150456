package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/sarisync/sarisync/internal/shared"
)

// Service implements Provider with bcrypt account records and Redis backed
// session tokens.
type Service struct {
	repo     Repository
	sessions *redis.Client
	ttl      time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	current *Session
	subs    map[chan *Session]struct{}
}

// NewService constructs the provider.
func NewService(repo Repository, sessions *redis.Client, ttl time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		sessions: sessions,
		ttl:      ttl,
		log:      log,
		subs:     make(map[chan *Session]struct{}),
	}
}

func sessionKey(token string) string { return "session:" + token }

// SignIn validates credentials and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return s.openSession(ctx, user)
}

// SignUp registers a new account and opens its first session.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, shared.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.openSession(ctx, &user)
}

// SignOut closes the current session. Signing out while signed out is a
// no-op.
func (s *Service) SignOut(ctx context.Context) error {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		return nil
	}
	if err := s.sessions.Del(ctx, sessionKey(current.Token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("auth: sign out: %w", err)
	}
	s.setCurrent(nil)
	return nil
}

// Resume restores a previous session from its token, e.g. at startup.
func (s *Service) Resume(ctx context.Context, token string) (*Session, error) {
	payload, err := s.sessions.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrSessionRequired
		}
		return nil, fmt.Errorf("auth: resume: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("auth: resume decode: %w", err)
	}
	s.setCurrent(&sess)
	return &sess, nil
}

// Current returns the session at this instant.
func (s *Service) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers an auth-state observer primed with the present
// state.
func (s *Service) Subscribe() (<-chan *Session, func()) {
	ch := make(chan *Session, 4)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- s.current
	s.mu.Unlock()
	release := func() {
		s.mu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, release
}

func (s *Service) openSession(ctx context.Context, user *User) (*Session, error) {
	sess := &Session{
		UserID:    user.ID,
		Email:     user.Email,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("auth: encode session: %w", err)
	}
	if err := s.sessions.Set(ctx, sessionKey(sess.Token), payload, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("auth: store session: %w", err)
	}
	s.setCurrent(sess)
	return sess, nil
}

func (s *Service) setCurrent(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
	for ch := range s.subs {
		select {
		case ch <- sess:
		default:
			// Observer lagging behind; it will read Current on its next
			// turn.
		}
	}
}
