package handler

import (
	"errors"
	"net/http"

	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
	"github.com/sandeepkv93/learning-portal-client/internal/http/response"
	"github.com/sandeepkv93/learning-portal-client/internal/service"
)

// writeError maps a service or gateway failure onto the shell's error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)
	message := err.Error()
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		message = gerr.Message
	}
	response.Error(w, r, status, code, message, nil)
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		return http.StatusBadRequest, "missing_credentials"
	case errors.Is(err, service.ErrNotSignedIn):
		return http.StatusUnauthorized, "not_signed_in"
	case errors.Is(err, service.ErrSessionChanged):
		return http.StatusConflict, "session_changed"
	}

	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		return http.StatusInternalServerError, "internal"
	}
	switch gerr.Kind {
	case gateway.KindInvalidCredentials, gateway.KindAuthenticationExpired:
		return http.StatusUnauthorized, string(gerr.Kind)
	case gateway.KindValidation:
		if gerr.Status >= 400 && gerr.Status < 500 {
			return gerr.Status, string(gerr.Kind)
		}
		return http.StatusBadRequest, string(gerr.Kind)
	case gateway.KindNetwork:
		return http.StatusBadGateway, string(gerr.Kind)
	default:
		return http.StatusBadGateway, string(gateway.KindServer)
	}
}
