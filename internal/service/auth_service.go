package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"
	"github.com/sandeepkv93/learning-portal-client/internal/session"
)

const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	AccountPath  = "/account/"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrMalformedResponse  = errors.New("malformed authentication response")
	ErrSessionChanged     = errors.New("session changed while the request was in flight")
	ErrNotSignedIn        = errors.New("not signed in")
)

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate holds the editable profile fields; nil fields are left unchanged.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

type authEnvelope struct {
	Data struct {
		Tokens domain.TokenPair `json:"tokens"`
		User   domain.User      `json:"user"`
	} `json:"data"`
}

type AuthService struct {
	store  *session.Store
	api    APIClient
	logger *slog.Logger
}

func NewAuthService(store *session.Store, api APIClient, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{store: store, api: api, logger: logger}
}

// SignIn exchanges credentials for a token pair and profile. The current session is left as it
// was on any failure.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (session.State, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return s.store.Snapshot(), ErrMissingCredentials
	}
	body := map[string]string{"email": email, "password": password}
	return s.authenticate(ctx, "password", LoginPath, body)
}

// Register creates an account and signs in with the returned credentials.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (session.State, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Email == "" || in.Password == "" {
		return s.store.Snapshot(), ErrMissingCredentials
	}
	return s.authenticate(ctx, "register", RegisterPath, in)
}

func (s *AuthService) authenticate(ctx context.Context, method, path string, body any) (session.State, error) {
	var env authEnvelope
	err := s.api.Do(ctx, http.MethodPost, path, gateway.RequestOptions{Body: body, Anonymous: true}, &env)
	if err != nil {
		status := "failure"
		if errors.Is(err, gateway.ErrInvalidCredentials) {
			status = "invalid_credentials"
		}
		observability.RecordSignIn(ctx, method, status)
		return s.store.Snapshot(), err
	}
	if !env.Data.Tokens.HasAccess() {
		observability.RecordSignIn(ctx, method, "malformed")
		return s.store.Snapshot(), ErrMalformedResponse
	}
	state, err := s.store.Establish(ctx, env.Data.Tokens, env.Data.User)
	if err != nil {
		observability.RecordSignIn(ctx, method, "failure")
		return s.store.Snapshot(), err
	}
	observability.RecordSignIn(ctx, method, "success")
	observability.Audit(ctx, s.logger, "session.signed_in", "method", method, "user_id", env.Data.User.ID)
	return state, nil
}

// SignOut clears the session. It is safe to call with no session.
func (s *AuthService) SignOut(ctx context.Context) error {
	return s.store.Clear(ctx, session.EventSignedOut, session.ReasonSignedOut)
}

// Bootstrap restores a persisted session once at startup by validating the stored access token
// against the account endpoint. Any validation failure clears the session without forcing
// navigation.
func (s *AuthService) Bootstrap(ctx context.Context) (session.State, error) {
	s.store.SetBootstrapping(true)
	err := s.bootstrap(ctx)
	s.store.SetBootstrapping(false)
	return s.store.Snapshot(), err
}

func (s *AuthService) bootstrap(ctx context.Context) error {
	ok, err := s.store.LoadDurable(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "load persisted session", "error", err)
		return err
	}
	if !ok {
		return nil
	}

	gen := s.store.Generation()
	user, err := s.fetchProfile(ctx, http.MethodGet, nil)
	if err != nil {
		if !errors.Is(err, gateway.ErrAuthenticationExpired) && s.store.Generation() == gen {
			_ = s.store.Clear(ctx, session.EventExpired, session.ReasonBootstrapFailed)
		}
		s.logger.InfoContext(ctx, "persisted session rejected", "error", err)
		return err
	}
	if !s.store.SetUser(gen, user) {
		return ErrSessionChanged
	}
	return nil
}

// RefreshProfile re-fetches the signed-in user's profile.
func (s *AuthService) RefreshProfile(ctx context.Context) (domain.User, error) {
	return s.updateUser(ctx, http.MethodGet, nil)
}

// UpdateProfile edits the signed-in user's profile and stores the server's copy.
func (s *AuthService) UpdateProfile(ctx context.Context, in ProfileUpdate) (domain.User, error) {
	return s.updateUser(ctx, http.MethodPatch, in)
}

func (s *AuthService) updateUser(ctx context.Context, method string, body any) (domain.User, error) {
	if !s.store.Snapshot().HasTokens {
		return domain.User{}, ErrNotSignedIn
	}
	gen := s.store.Generation()
	user, err := s.fetchProfile(ctx, method, body)
	if err != nil {
		return domain.User{}, err
	}
	if !s.store.SetUser(gen, user) {
		return domain.User{}, ErrSessionChanged
	}
	return user, nil
}

func (s *AuthService) fetchProfile(ctx context.Context, method string, body any) (domain.User, error) {
	var raw json.RawMessage
	if err := s.api.Do(ctx, method, AccountPath, gateway.RequestOptions{Body: body}, &raw); err != nil {
		return domain.User{}, err
	}
	return decodeProfile(raw)
}

// decodeProfile accepts the profile either bare or wrapped in {"data": ...}.
func decodeProfile(raw json.RawMessage) (domain.User, error) {
	var wrapped struct {
		Data *domain.User `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Data != nil {
		return *wrapped.Data, nil
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if user.ID == "" && user.Email == "" {
		return domain.User{}, ErrMalformedResponse
	}
	return user, nil
}
