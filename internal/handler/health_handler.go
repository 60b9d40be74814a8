package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/kitcourier/internal/model"
)

// HealthChecker はランクストアの疎通確認インターフェース。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler はランクストアへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := checker.Ping(ctx); err != nil {
			slog.Warn("health check failed", slog.String("error", err.Error()))
			handleServiceError(w, model.NewStoreUnavailableError())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
