package handler

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
	"github.com/sandeepkv93/learning-portal-client/internal/http/response"
)

const maxProxyBodyBytes = 10 << 20

// DataClient is the gateway surface the proxy forwards through.
type DataClient interface {
	Request(ctx context.Context, method, path string, opts gateway.RequestOptions) (json.RawMessage, error)
}

// ProxyHandler forwards shell data calls to the remote API through the gateway, so they share the
// session's bearer token and refresh handling. Prefix is stripped from the incoming path.
type ProxyHandler struct {
	api    DataClient
	prefix string
}

func NewProxyHandler(api DataClient, prefix string) *ProxyHandler {
	return &ProxyHandler{api: api, prefix: strings.TrimRight(prefix, "/")}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, h.prefix)
	if path == "" {
		path = "/"
	}
	opts, ok := proxyOptions(w, r)
	if !ok {
		return
	}
	raw, err := h.api.Request(r.Context(), r.Method, path, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(raw) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// proxyOptions passes JSON bodies on as JSON and anything else untouched with its content type.
func proxyOptions(w http.ResponseWriter, r *http.Request) (gateway.RequestOptions, bool) {
	opts := gateway.RequestOptions{Query: r.URL.Query()}
	if r.Body == nil || r.Body == http.NoBody {
		return opts, true
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProxyBodyBytes))
	if err != nil {
		response.Error(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large", nil)
		return opts, false
	}
	if len(body) == 0 {
		return opts, true
	}
	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "" || mediaType == "application/json" {
		if !json.Valid(body) {
			response.Error(w, r, http.StatusBadRequest, "bad_request", "request body is not valid JSON", nil)
			return opts, false
		}
		opts.Body = json.RawMessage(body)
		return opts, true
	}
	opts.Body = body
	opts.Binary = true
	opts.ContentType = contentType
	return opts, true
}
