package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestErrorEnvelopeCarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rr := httptest.NewRecorder()
	Error(rr, req, http.StatusForbidden, "permission_denied", "nope", nil)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Meta struct {
			RequestID string `json:"request_id"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error.Code != "permission_denied" || body.Meta.RequestID != "req-123" {
		t.Fatalf("unexpected envelope %+v", body)
	}
}

func TestRawWritesBareJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	Raw(rr, http.StatusOK, map[string]string{"access": "a"})
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("content type = %q", rr.Header().Get("Content-Type"))
	}
	if got := rr.Body.String(); got != "{\"access\":\"a\"}\n" {
		t.Fatalf("body = %q", got)
	}
}
