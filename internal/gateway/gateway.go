package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/sandeepkv93/learning-portal-client/internal/config"
	"github.com/sandeepkv93/learning-portal-client/internal/domain"
	"github.com/sandeepkv93/learning-portal-client/internal/observability"
	"github.com/sandeepkv93/learning-portal-client/internal/session"
)

const (
	RequestIDHeader    = "X-Request-Id"
	DefaultRefreshPath = "/auth/token/refresh/"

	maxResponseBytes = 8 << 20
)

var errResponseTooLarge = fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)

// Credentials is the session state the gateway reads and, on refresh or expiry, mutates. Both
// mutations are conditional on the session still holding the pair the request was sent with.
type Credentials interface {
	Current() (domain.TokenPair, uint64)
	ReplaceTokens(ctx context.Context, prev, next domain.TokenPair) error
	Expire(ctx context.Context, sent domain.TokenPair, reason string) bool
}

type Options struct {
	BaseURL     string
	RefreshPath string
	UserAgent   string
	HTTPClient  *http.Client
	Notifier    Notifier
	Logger      *slog.Logger
}

// RequestOptions describe one call. Body is JSON encoded unless Binary is set, in which case it
// must be an io.Reader, []byte or string and is sent as-is with the caller's ContentType.
// Anonymous requests never carry the bearer token and a 401 on them means bad credentials.
type RequestOptions struct {
	Query       url.Values
	Body        any
	Binary      bool
	ContentType string
	Anonymous   bool
	Header      http.Header
}

// Gateway is the single path every remote API call takes. It is safe for concurrent use.
type Gateway struct {
	base        *url.URL
	refreshPath string
	userAgent   string
	client      *http.Client
	creds       Credentials
	notifier    Notifier
	logger      *slog.Logger
	refreshes   singleflight.Group
}

func New(creds Credentials, opts Options) (*Gateway, error) {
	if creds == nil {
		return nil, errors.New("gateway credentials are required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", opts.BaseURL)
	}
	if opts.RefreshPath == "" {
		opts.RefreshPath = DefaultRefreshPath
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Gateway{
		base:        base,
		refreshPath: opts.RefreshPath,
		userAgent:   opts.UserAgent,
		client:      opts.HTTPClient,
		creds:       creds,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
	}, nil
}

// NewFromConfig builds a gateway whose HTTP client honours the configured timeout and, when
// enabled, emits client spans through otelhttp.
func NewFromConfig(cfg *config.Config, creds Credentials, notifier Notifier, logger *slog.Logger) (*Gateway, error) {
	var transport http.RoundTripper = http.DefaultTransport
	if cfg.EnableOTelHTTP {
		transport = otelhttp.NewTransport(transport)
	}
	return New(creds, Options{
		BaseURL:     cfg.APIBaseURL,
		RefreshPath: cfg.RefreshPath,
		UserAgent:   cfg.UserAgent,
		HTTPClient:  &http.Client{Timeout: cfg.HTTPTimeout, Transport: transport},
		Notifier:    notifier,
		Logger:      logger,
	})
}

// Do performs Request and decodes a non-empty response into out.
func (g *Gateway) Do(ctx context.Context, method, path string, opts RequestOptions, out any) error {
	raw, err := g.Request(ctx, method, path, opts)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return g.fail(ctx, method, path, &Error{Kind: KindServer, Message: "unexpected response from server", Err: err})
	}
	return nil
}

// Request sends method path with opts and returns the raw JSON body of a 2xx response, nil for
// an empty body. A 401 triggers at most one token refresh and one retry.
func (g *Gateway) Request(ctx context.Context, method, path string, opts RequestOptions) (json.RawMessage, error) {
	target, err := g.resolve(path, opts.Query)
	if err != nil {
		return nil, err
	}
	payload, contentType, err := encodeBody(opts)
	if err != nil {
		return nil, err
	}

	var (
		sent domain.TokenPair
		gen  uint64
	)
	if !opts.Anonymous {
		sent, gen = g.creds.Current()
	}
	status, body, err := g.send(ctx, method, target, payload, contentType, sent.Access, opts.Header)
	if err != nil {
		return nil, g.fail(ctx, method, path, sendError(status, err))
	}
	if opts.Anonymous && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
		code, msg := serverMessage(body)
		observability.RecordGatewayRequest(ctx, method, status, string(KindInvalidCredentials))
		return nil, &Error{Kind: KindInvalidCredentials, Status: status, Code: code, Message: msg}
	}
	if status != http.StatusUnauthorized {
		return g.finish(ctx, method, path, status, body)
	}
	if !sent.HasRefresh() {
		return nil, g.expire(ctx, method, path, status, sent, session.ReasonUnauthorized)
	}

	next, err := g.refresh(ctx, sent, gen)
	if err != nil {
		return nil, g.fail(ctx, method, path, err)
	}
	status, body, err = g.send(ctx, method, target, payload, contentType, next.Access, opts.Header)
	if err != nil {
		return nil, g.fail(ctx, method, path, sendError(status, err))
	}
	if status == http.StatusUnauthorized {
		return nil, g.expire(ctx, method, path, status, next, session.ReasonUnauthorized)
	}
	return g.finish(ctx, method, path, status, body)
}

func (g *Gateway) finish(ctx context.Context, method, path string, status int, body []byte) (json.RawMessage, error) {
	if status >= 200 && status < 300 {
		observability.RecordGatewayRequest(ctx, method, status, "success")
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, nil
		}
		return json.RawMessage(body), nil
	}
	code, msg := serverMessage(body)
	return nil, g.fail(ctx, method, path, &Error{Kind: kindForStatus(status), Status: status, Code: code, Message: msg})
}

// expire clears the session only if it still holds sent; a 401 for an older session never ends a
// newer one. The caller gets ErrAuthenticationExpired either way.
func (g *Gateway) expire(ctx context.Context, method, path string, status int, sent domain.TokenPair, reason string) error {
	if !g.creds.Expire(ctx, sent, reason) {
		g.logger.InfoContext(ctx, "stale unauthorized response ignored", "method", method, "path", path)
	}
	return g.fail(ctx, method, path, &Error{Kind: KindAuthenticationExpired, Status: status})
}

// fail records and surfaces err to the notifier. Errors that are not *Error are reported as server errors.
func (g *Gateway) fail(ctx context.Context, method, path string, err error) error {
	var gerr *Error
	if !errors.As(err, &gerr) {
		gerr = &Error{Kind: KindServer, Err: err}
		err = gerr
	}
	observability.RecordGatewayRequest(ctx, method, gerr.Status, string(gerr.Kind))
	message := gerr.Message
	if message == "" {
		message = defaultMessage(gerr.Kind)
	}
	if gerr.Kind != KindInvalidCredentials && !errors.Is(err, context.Canceled) {
		g.notifier.Notify(ctx, Notification{Kind: gerr.Kind, Status: gerr.Status, Message: message, Method: method, Path: path})
	}
	return err
}

// refresh returns a usable pair for retrying a request that was rejected with sent under
// generation gen. Concurrent callers holding the same refresh token share one refresh call. When
// another caller already refreshed the pair, the current one is returned without contacting the
// server. A session signed out or re-established since gen is never used for the retry.
func (g *Gateway) refresh(ctx context.Context, sent domain.TokenPair, gen uint64) (domain.TokenPair, error) {
	current, currentGen := g.creds.Current()
	if current.IsZero() || currentGen != gen {
		return domain.TokenPair{}, &Error{Kind: KindAuthenticationExpired, Status: http.StatusUnauthorized}
	}
	if current != sent && current.HasAccess() {
		return current, nil
	}
	ch := g.refreshes.DoChan(sent.Refresh, func() (any, error) {
		return g.doRefresh(context.WithoutCancel(ctx), sent)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.TokenPair{}, res.Err
		}
		return res.Val.(domain.TokenPair), nil
	case <-ctx.Done():
		return domain.TokenPair{}, &Error{Kind: KindNetwork, Err: ctx.Err()}
	}
}

func (g *Gateway) doRefresh(ctx context.Context, sent domain.TokenPair) (domain.TokenPair, error) {
	refreshToken := sent.Refresh
	target, err := g.resolve(g.refreshPath, nil)
	if err != nil {
		return domain.TokenPair{}, err
	}
	payload, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return domain.TokenPair{}, err
	}
	status, body, err := g.send(ctx, http.MethodPost, target, payload, "application/json", "", nil)
	if err != nil {
		observability.RecordTokenRefresh(ctx, "network_error")
		return domain.TokenPair{}, sendError(status, err)
	}

	var pair domain.TokenPair
	if status < 200 || status >= 300 || json.Unmarshal(body, &pair) != nil || !pair.HasAccess() {
		observability.RecordTokenRefresh(ctx, "rejected")
		g.logger.WarnContext(ctx, "token refresh rejected", "status", status)
		g.creds.Expire(ctx, sent, session.ReasonRefreshFailed)
		return domain.TokenPair{}, &Error{Kind: KindAuthenticationExpired, Status: status}
	}
	if !pair.HasRefresh() {
		pair.Refresh = refreshToken
	}
	if err := g.creds.ReplaceTokens(ctx, sent, pair); err != nil {
		if errors.Is(err, session.ErrSessionChanged) {
			observability.RecordTokenRefresh(ctx, "discarded")
			g.logger.InfoContext(ctx, "refreshed tokens discarded, session changed")
			return domain.TokenPair{}, &Error{Kind: KindAuthenticationExpired, Status: http.StatusUnauthorized}
		}
		observability.RecordTokenRefresh(ctx, "persist_error")
		return domain.TokenPair{}, &Error{Kind: KindServer, Message: "could not store refreshed credentials", Err: err}
	}
	observability.RecordTokenRefresh(ctx, "success")
	return pair, nil
}

func (g *Gateway) send(ctx context.Context, method, target string, payload []byte, contentType, access string, extra http.Header) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, err
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	if access != "" {
		(&oauth2.Token{AccessToken: access, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if len(data) > maxResponseBytes {
		return resp.StatusCode, nil, errResponseTooLarge
	}
	return resp.StatusCode, data, nil
}

func sendError(status int, err error) *Error {
	if errors.Is(err, errResponseTooLarge) {
		return &Error{Kind: KindServer, Status: status, Message: "response too large", Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}

func (g *Gateway) resolve(path string, query url.Values) (string, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse request path %q: %w", path, err)
	}
	u := *g.base
	u.Path = strings.TrimRight(g.base.Path, "/") + "/" + strings.TrimLeft(rel.Path, "/")
	q := rel.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func encodeBody(opts RequestOptions) ([]byte, string, error) {
	if opts.Body == nil {
		return nil, opts.ContentType, nil
	}
	if !opts.Binary {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		contentType := opts.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		return data, contentType, nil
	}
	switch b := opts.Body.(type) {
	case []byte:
		return b, opts.ContentType, nil
	case string:
		return []byte(b), opts.ContentType, nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", fmt.Errorf("read binary request body: %w", err)
		}
		return data, opts.ContentType, nil
	default:
		return nil, "", fmt.Errorf("binary request body must be io.Reader, []byte or string, got %T", opts.Body)
	}
}
