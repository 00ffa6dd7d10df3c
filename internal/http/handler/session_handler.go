package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/http/response"
	"github.com/sandeepkv93/learning-portal-client/internal/service"
	"github.com/sandeepkv93/learning-portal-client/internal/session"
)

// SessionSource is the read side of the session store.
type SessionSource interface {
	Snapshot() session.State
	Subscribe(buffer int) (<-chan session.Event, func())
}

// SessionView is the JSON shape of a session snapshot.
type SessionView struct {
	Status          session.Status `json:"status"`
	User            *domain.User   `json:"user,omitempty"`
	IsBootstrapping bool           `json:"is_bootstrapping"`
}

func NewSessionView(s session.State) SessionView {
	return SessionView{Status: s.Status(), User: s.User, IsBootstrapping: s.IsBootstrapping}
}

type SessionHandler struct {
	auth    service.AuthServiceInterface
	session SessionSource
}

func NewSessionHandler(auth service.AuthServiceInterface, src SessionSource) *SessionHandler {
	return &SessionHandler{auth: auth, session: src}
}

func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, NewSessionView(h.session.Snapshot()))
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	h.establish(w, r, http.StatusOK, func(ctx context.Context) (session.State, error) {
		return h.auth.SignIn(ctx, in.Email, in.Password)
	})
}

func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}
	h.establish(w, r, http.StatusCreated, func(ctx context.Context) (session.State, error) {
		return h.auth.Register(ctx, in)
	})
}

func (h *SessionHandler) establish(w http.ResponseWriter, r *http.Request, status int, fn func(context.Context) (session.State, error)) {
	state, err := fn(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, status, NewSessionView(state))
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateProfile edits name and/or email of the signed-in user.
func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	user, err := h.auth.UpdateProfile(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Error(w, r, http.StatusBadRequest, "bad_request", "request body must be a JSON object", nil)
		return false
	}
	return true
}
