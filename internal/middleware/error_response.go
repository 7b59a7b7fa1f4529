package middleware

import (
	"fmt"
	"net/http"

	"github.com/hitoshi/profilekeeper/internal/model"
)

// ErrorRenderer はエラーページを描画する。
// view.Rendererが実装する。
type ErrorRenderer interface {
	RenderError(w http.ResponseWriter, statusCode int, apiErr *model.APIError)
}

// PlainErrorRenderer はテンプレートを使わずにtext/plainでエラーを返すErrorRenderer。
// ErrorRendererが設定されていない場合に使用する。
type PlainErrorRenderer struct{}

// RenderError はエラーメッセージと対処方法をtext/plainで書き込む。
func (PlainErrorRenderer) RenderError(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, "%s\n%s\n", apiErr.Message, apiErr.Action)
}

// WriteErrorResponse は統一エラーフォーマットでエラーページを書き込む。
// rendererがnilの場合はPlainErrorRendererを使用する。
func WriteErrorResponse(w http.ResponseWriter, renderer ErrorRenderer, statusCode int, apiErr *model.APIError) {
	if renderer == nil {
		renderer = PlainErrorRenderer{}
	}
	renderer.RenderError(w, statusCode, apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter, renderer ErrorRenderer) {
	WriteErrorResponse(w, renderer, http.StatusInternalServerError, model.NewInternalError())
}

// compile-time interface check
var _ ErrorRenderer = PlainErrorRenderer{}
