package devapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/http/middleware"
	"github.com/sandeepkv93/learning-portal-client/internal/http/response"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"
	"github.com/sandeepkv93/learning-portal-client/internal/repository"
	"github.com/sandeepkv93/learning-portal-client/internal/security"
)

const maxUploadBytes = 10 << 20

type authResponse struct {
	Data authData `json:"data"`
}

type authData struct {
	Tokens domain.TokenPair `json:"tokens"`
	User   domain.User      `json:"user"`
}

// fieldErrors is the validation body shape: field name to messages.
type fieldErrors map[string][]string

type detail struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

type Handlers struct {
	accounts repository.AccountRepository
	content  repository.ContentRepository
	tokens   *TokenService
	misses   MissCache
	missTTL  time.Duration
	logger   *slog.Logger
}

func NewHandlers(accounts repository.AccountRepository, content repository.ContentRepository, tokens *TokenService, misses MissCache, missTTL time.Duration, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if misses == nil {
		misses = noopMissCache{}
	}
	return &Handlers{accounts: accounts, content: content, tokens: tokens, misses: misses, missTTL: missTTL, logger: logger}
}

// knownMiss reports a cached miss; cache failures only cost a database lookup.
func (h *Handlers) knownMiss(r *http.Request, namespace, key string) bool {
	hit, err := h.misses.Get(r.Context(), namespace, key)
	if err != nil {
		h.logger.WarnContext(r.Context(), "miss cache get", "namespace", namespace, "error", err)
		return false
	}
	return hit
}

func (h *Handlers) rememberMiss(r *http.Request, namespace, key string) {
	if err := h.misses.Set(r.Context(), namespace, key, h.missTTL); err != nil {
		h.logger.WarnContext(r.Context(), "miss cache set", "namespace", namespace, "error", err)
	}
}

func (h *Handlers) forgetMisses(r *http.Request, namespace string) {
	if err := h.misses.InvalidateNamespace(r.Context(), namespace); err != nil {
		h.logger.WarnContext(r.Context(), "miss cache invalidate", "namespace", namespace, "error", err)
	}
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if errs := required(map[string]string{"email": in.Email, "password": in.Password}); errs != nil {
		response.Raw(w, http.StatusBadRequest, errs)
		return
	}
	email := repository.NormalizeEmail(in.Email)
	var account *domain.Account
	err := repository.ErrAccountNotFound
	if !h.knownMiss(r, nsUnknownEmail, email) {
		account, err = h.accounts.FindByEmail(r.Context(), email)
		if errors.Is(err, repository.ErrAccountNotFound) {
			h.rememberMiss(r, nsUnknownEmail, email)
		}
	}
	if err == nil {
		err = security.CheckPassword(account.PasswordHash, in.Password)
	}
	if err != nil {
		if !errors.Is(err, repository.ErrAccountNotFound) && !errors.Is(err, security.ErrPasswordMismatch) {
			h.internalError(w, r, "login lookup", err)
			return
		}
		observability.Audit(r.Context(), h.logger, "devapi.login_failed", "email", email)
		response.Raw(w, http.StatusUnauthorized, detail{Detail: "No active account found with the given credentials"})
		return
	}
	h.issue(w, r, http.StatusOK, account)
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if errs := required(map[string]string{"email": in.Email, "password": in.Password}); errs != nil {
		response.Raw(w, http.StatusBadRequest, errs)
		return
	}
	if !strings.Contains(in.Email, "@") {
		response.Raw(w, http.StatusBadRequest, fieldErrors{"email": {"Enter a valid email address."}})
		return
	}
	hash, err := security.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, security.ErrWeakPassword) {
			response.Raw(w, http.StatusBadRequest, fieldErrors{"password": {"This password is too short. It must contain at least 8 characters."}})
			return
		}
		h.internalError(w, r, "hash password", err)
		return
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.SplitN(in.Email, "@", 2)[0]
	}
	account := &domain.Account{Email: in.Email, Name: name, Role: domain.RoleStudent, PasswordHash: hash}
	if err := h.accounts.Create(r.Context(), account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			response.Raw(w, http.StatusBadRequest, fieldErrors{"email": {"account with this email already exists."}})
			return
		}
		h.internalError(w, r, "create account", err)
		return
	}
	h.forgetMisses(r, nsUnknownEmail)
	observability.Audit(r.Context(), h.logger, "devapi.registered", "account_id", account.ID)
	h.issue(w, r, http.StatusCreated, account)
}

func (h *Handlers) issue(w http.ResponseWriter, r *http.Request, status int, account *domain.Account) {
	pair, err := h.tokens.Issue(r.Context(), account)
	if err != nil {
		h.internalError(w, r, "issue tokens", err)
		return
	}
	response.Raw(w, status, authResponse{Data: authData{Tokens: pair, User: account.Profile()}})
}

// Refresh answers with a bare {access, refresh} pair.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Refresh string `json:"refresh"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Refresh == "" {
		response.Raw(w, http.StatusBadRequest, fieldErrors{"refresh": {"This field is required."}})
		return
	}
	pair, err := h.tokens.Rotate(r.Context(), in.Refresh, h.accounts.FindByID)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) || errors.Is(err, ErrRefreshTokenReuseDetected) {
			response.Raw(w, http.StatusUnauthorized, detail{Detail: "Token is invalid or expired", Code: "token_not_valid"})
			return
		}
		h.internalError(w, r, "rotate refresh token", err)
		return
	}
	response.Raw(w, http.StatusOK, pair)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}
	if err := h.tokens.RevokeAll(r.Context(), account.ID, "logout"); err != nil {
		h.internalError(w, r, "revoke sessions", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Account returns the bare profile.
func (h *Handlers) Account(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}
	response.Raw(w, http.StatusOK, account.Profile())
}

// UpdateAccount returns the edited profile wrapped in {"data": ...}.
func (h *Handlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}
	var in struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			response.Raw(w, http.StatusBadRequest, fieldErrors{"name": {"This field may not be blank."}})
			return
		}
		account.Name = name
	}
	if in.Email != nil {
		if !strings.Contains(*in.Email, "@") {
			response.Raw(w, http.StatusBadRequest, fieldErrors{"email": {"Enter a valid email address."}})
			return
		}
		account.Email = *in.Email
	}
	if err := h.accounts.Update(r.Context(), account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			response.Raw(w, http.StatusBadRequest, fieldErrors{"email": {"account with this email already exists."}})
			return
		}
		h.internalError(w, r, "update account", err)
		return
	}
	if in.Email != nil {
		h.forgetMisses(r, nsUnknownEmail)
	}
	response.Raw(w, http.StatusOK, map[string]domain.User{"data": account.Profile()})
}

func (h *Handlers) Articles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	result, err := h.content.ListArticles(r.Context(), repository.PageRequest{Page: page, PageSize: size})
	if err != nil {
		h.internalError(w, r, "list articles", err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

func (h *Handlers) Quiz(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(w, r, http.StatusBadRequest, "invalid_id", "quiz id must be a positive integer", nil)
		return
	}
	key := strconv.FormatUint(id, 10)
	if h.knownMiss(r, nsMissingQuiz, key) {
		response.Error(w, r, http.StatusNotFound, "not_found", "Not found.", nil)
		return
	}
	quiz, err := h.content.FindQuiz(r.Context(), uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrQuizNotFound) {
			h.rememberMiss(r, nsMissingQuiz, key)
			response.Error(w, r, http.StatusNotFound, "not_found", "Not found.", nil)
			return
		}
		h.internalError(w, r, "find quiz", err)
		return
	}
	response.JSON(w, r, http.StatusOK, quiz)
}

func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.content.Stats(r.Context())
	if err != nil {
		h.internalError(w, r, "analytics", err)
		return
	}
	response.JSON(w, r, http.StatusOK, stats)
}

// Upload accepts a multipart form with a "file" part and reports what arrived.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		response.Raw(w, http.StatusBadRequest, fieldErrors{"file": {"No file was submitted."}})
		return
	}
	defer func() { _ = file.Close() }()
	n, err := io.Copy(io.Discard, file)
	if err != nil {
		response.Raw(w, http.StatusBadRequest, fieldErrors{"file": {"The submitted file could not be read."}})
		return
	}
	response.JSON(w, r, http.StatusCreated, map[string]any{"name": header.Filename, "size": n})
}

func (h *Handlers) currentAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "not_authenticated", "missing auth context", nil)
		return nil, false
	}
	id, err := claims.AccountID()
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "token_not_valid", "Given token not valid for any token type", nil)
		return nil, false
	}
	account, err := h.accounts.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			response.Error(w, r, http.StatusUnauthorized, "user_not_found", "User not found", nil)
			return nil, false
		}
		h.internalError(w, r, "load account", err)
		return nil, false
	}
	return account, true
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "devapi request failed", "op", op, "error", err)
	response.Error(w, r, http.StatusInternalServerError, "server_error", "A server error occurred.", nil)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		response.Raw(w, http.StatusBadRequest, detail{Detail: "JSON parse error"})
		return false
	}
	return true
}

func required(fields map[string]string) fieldErrors {
	var errs fieldErrors
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			if errs == nil {
				errs = fieldErrors{}
			}
			errs[name] = []string{"This field is required."}
		}
	}
	return errs
}
