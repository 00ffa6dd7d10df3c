package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"
	"github.com/sandeepkv93/learning-portal-client/internal/storage"
)

const (
	ReasonSignedOut       = "signed_out"
	ReasonRefreshFailed   = "refresh_failed"
	ReasonUnauthorized    = "unauthorized"
	ReasonBootstrapFailed = "bootstrap_failed"
)

var (
	ErrNoTokens       = errors.New("no tokens to persist")
	ErrSessionChanged = errors.New("session changed since the tokens were read")
)

// Store is the single source of truth for who is logged in and which credentials to use.
// It is the only writer of the durable token slot; durable writes happen before the in-memory
// copy changes so both stay consistent for every reader.
type Store struct {
	mu            sync.RWMutex
	tokens        domain.TokenPair
	user          *domain.User
	bootstrapping bool
	generation    uint64

	durable storage.TokenStore
	events  *broadcaster
	logger  *slog.Logger
}

func NewStore(durable storage.TokenStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		durable: durable,
		events:  newBroadcaster(),
		logger:  logger,
	}
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	var user *domain.User
	if s.user != nil {
		u := *s.user
		user = &u
	}
	return State{User: user, IsBootstrapping: s.bootstrapping, HasTokens: !s.tokens.IsZero()}
}

func (s *Store) CheckRole(required string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CheckRole(s.user, required)
}

func (s *Store) Tokens() domain.TokenPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// Current returns the pair together with the generation it belongs to.
func (s *Store) Current() (domain.TokenPair, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens, s.generation
}

// Generation changes every time the session is cleared or re-established.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	return s.events.subscribe(buffer)
}

// LoadDurable copies the persisted pair into memory and reports whether one existed.
// A corrupt durable entry is removed and treated as no session.
func (s *Store) LoadDurable(ctx context.Context) (bool, error) {
	pair, ok, err := s.durable.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrCorruptTokens) {
			s.logger.WarnContext(ctx, "discarding corrupt durable tokens", "error", err)
			return false, s.durable.Clear(ctx)
		}
		return false, fmt.Errorf("load durable tokens: %w", err)
	}
	s.mu.Lock()
	if ok {
		s.tokens = pair
	} else {
		s.tokens = domain.TokenPair{}
	}
	s.mu.Unlock()
	return ok, nil
}

// Establish stores a freshly issued pair and its validated profile together.
func (s *Store) Establish(ctx context.Context, pair domain.TokenPair, user domain.User) (State, error) {
	if pair.IsZero() {
		return State{}, ErrNoTokens
	}
	s.mu.Lock()
	if err := s.durable.Save(ctx, pair); err != nil {
		s.mu.Unlock()
		return State{}, fmt.Errorf("persist tokens: %w", err)
	}
	s.tokens = pair
	s.user = &user
	s.generation++
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.events.publish(Event{Kind: EventSignedIn, State: state})
	return state, nil
}

// ReplaceTokens swaps prev for a refreshed pair; the user is left untouched. It returns
// ErrSessionChanged and writes nothing when the session no longer holds prev.
func (s *Store) ReplaceTokens(ctx context.Context, prev, next domain.TokenPair) error {
	if next.IsZero() {
		return ErrNoTokens
	}
	s.mu.Lock()
	if prev.IsZero() || s.tokens != prev {
		s.mu.Unlock()
		return ErrSessionChanged
	}
	if err := s.durable.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist refreshed tokens: %w", err)
	}
	s.tokens = next
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.events.publish(Event{Kind: EventTokensRefreshed, State: state})
	return nil
}

// SetUser applies a profile fetched under generation gen. It returns false and leaves the state
// alone when the session was cleared in between or no tokens remain.
func (s *Store) SetUser(gen uint64, user domain.User) bool {
	s.mu.Lock()
	if gen != s.generation || s.tokens.IsZero() {
		s.mu.Unlock()
		return false
	}
	s.user = &user
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.events.publish(Event{Kind: EventProfileUpdated, State: state})
	return true
}

func (s *Store) SetBootstrapping(on bool) {
	s.mu.Lock()
	s.bootstrapping = on
	state := s.snapshotLocked()
	s.mu.Unlock()
	if !on {
		s.events.publish(Event{Kind: EventBootstrapped, State: state})
	}
}

// Clear wipes tokens and user in memory and durably. Clearing an empty session is a no-op
// apart from removing any durable leftover. The in-memory state is cleared even if the durable
// delete fails; the error is still returned.
func (s *Store) Clear(ctx context.Context, kind EventKind, reason string) error {
	s.mu.Lock()
	return s.clearLocked(ctx, kind, reason)
}

// clearLocked must be called with s.mu held and releases it.
func (s *Store) clearLocked(ctx context.Context, kind EventKind, reason string) error {
	hadSession := !s.tokens.IsZero() || s.user != nil
	durableErr := s.durable.Clear(ctx)
	s.tokens = domain.TokenPair{}
	s.user = nil
	s.generation++
	state := s.snapshotLocked()
	s.mu.Unlock()

	if durableErr != nil {
		s.logger.ErrorContext(ctx, "clear durable tokens", "error", durableErr)
	}
	if hadSession {
		observability.RecordSessionCleared(ctx, reason)
		observability.Audit(ctx, s.logger, "session.cleared", "kind", string(kind), "reason", reason)
	}
	s.events.publish(Event{Kind: kind, State: state, Cleared: true, Reason: reason})
	if durableErr != nil {
		return fmt.Errorf("clear durable tokens: %w", durableErr)
	}
	return nil
}

// Expire ends the session after an unrecoverable authorization failure of a request sent with
// sent. A session that was signed out or replaced since then is left alone and false is returned.
func (s *Store) Expire(ctx context.Context, sent domain.TokenPair, reason string) bool {
	s.mu.Lock()
	if s.tokens != sent {
		s.mu.Unlock()
		return false
	}
	_ = s.clearLocked(ctx, EventExpired, reason)
	return true
}
