package middleware

import "net/http"

// NewSecurityHeadersMiddleware はステータスAPIのレスポンスヘッダーを付与するミドルウェアを返す。
// JSONのみを返すAPIのため、スクリプトや埋め込みはすべて禁止する。
// セッション状態は刻々と変わるためキャッシュさせない。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
