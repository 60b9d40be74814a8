package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/kitcourier/internal/model"
)

// ErrorResponseBody はステータスAPIのエラーレスポンスの統一フォーマット。
// RequestIDはログとの突き合わせに使う。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// RequestIDミドルウェアが付与したX-Request-Idがあればボディにも含める。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "ボットの内部エラーが発生しました。",
		Category: "system",
		Action:   "イベントログとボットのログを確認してください。",
	})
}
