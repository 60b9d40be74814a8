package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kitcourier/internal/model"
)

// EntitlementReader はランク情報ハンドラーが必要とするインターフェース。
type EntitlementReader interface {
	Record(ctx context.Context, username string) (*model.EntitlementRecord, error)
}

// EntitlementHandler はアカウントのランク情報を返すHTTPハンドラー。
type EntitlementHandler struct {
	reader EntitlementReader
}

// NewEntitlementHandler はEntitlementHandlerを生成する。
func NewEntitlementHandler(reader EntitlementReader) *EntitlementHandler {
	return &EntitlementHandler{reader: reader}
}

type entitlementResponse struct {
	Username  string            `json:"username"`
	Tiers     map[string]string `json:"tiers"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// Get は指定アカウントのゲームモード別ランクを返す。
// GET /api/entitlements/{username}
func (h *EntitlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	rec, err := h.reader.Record(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if rec == nil {
		handleServiceError(w, model.NewEntitlementAbsentError(username))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEntitlementResponse(rec))
}

func toEntitlementResponse(rec *model.EntitlementRecord) entitlementResponse {
	tiers := make(map[string]string, 3)
	for _, mode := range model.SupportedGameModes() {
		if tier, ok := rec.TierFor(mode); ok {
			tiers[string(mode)] = tier
		}
	}
	return entitlementResponse{
		Username:  rec.Username,
		Tiers:     tiers,
		FetchedAt: rec.FetchedAt,
	}
}
