package handler

import (
	"net/http"

	"github.com/sandeepkv93/learning-portal-client/internal/http/response"
)

type pageView struct {
	Page    string      `json:"page"`
	Session SessionView `json:"session"`
}

// Page is a placeholder for a rendered page: it reports which page would render and for whom.
func Page(name string, src SessionSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, pageView{Page: name, Session: NewSessionView(src.Snapshot())})
	}
}
