package middleware

import "net/http"

// pageHeaders はサーバー描画のHTMLページ向けに全レスポンスへ付与するヘッダー。
// ページは外部リソース・インラインスクリプトを使わず、フォームの送信先も自オリジンのみ。
// /authorize のURLには認可コードが含まれるため、Refererは一切送らない。
// プロフィールは個人情報を含むため、レスポンスをキャッシュさせない。
var pageHeaders = []struct{ name, value string }{
	{"Content-Security-Policy", "default-src 'none'; img-src 'self'; style-src 'self'; form-action 'self'; frame-ancestors 'none'; base-uri 'none'"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cache-Control", "no-store"},
}

// strictTransportSecurity はHTTPSで公開する場合のみ付与する。
const strictTransportSecurity = "max-age=31536000; includeSubDomains"

// SecurityHeadersConfig はセキュリティヘッダーミドルウェアの設定。
type SecurityHeadersConfig struct {
	// StrictTransport がtrueの場合、Strict-Transport-Securityを付与する。
	// BASE_URLがhttpsの場合に有効にする。
	StrictTransport bool
}

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware(config SecurityHeadersConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, ph := range pageHeaders {
				h.Set(ph.name, ph.value)
			}
			if config.StrictTransport {
				h.Set("Strict-Transport-Security", strictTransportSecurity)
			}
			next.ServeHTTP(w, r)
		})
	}
}
