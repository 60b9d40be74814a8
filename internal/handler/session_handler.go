package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kitcourier/internal/model"
	"github.com/hitoshi/kitcourier/internal/session"
)

// SessionLister はセッションハンドラーが必要とするセッション一覧のインターフェース。
type SessionLister interface {
	Snapshot() []session.Status
	Lookup(username string) (session.Status, bool)
}

// SessionHandler はセッション状態を返すHTTPハンドラー。
type SessionHandler struct {
	sessions SessionLister
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(sessions SessionLister) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type sessionListResponse struct {
	Sessions []session.Status `json:"sessions"`
	Live     int              `json:"live"`
}

// List は全アカウントのセッション状態を返す。
// GET /api/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses := h.sessions.Snapshot()

	live := 0
	for _, s := range statuses {
		if s.State != session.StateIdle && s.State != session.StateTerminal && s.State != session.StateNoEntitlement {
			live++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionListResponse{Sessions: statuses, Live: live})
}

// Get は指定アカウントのセッション状態を返す。
// GET /api/sessions/{username}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	status, ok := h.sessions.Lookup(username)
	if !ok {
		handleServiceError(w, model.NewSessionNotFoundError(username))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}
