package handler

import (
	"net/http"

	"github.com/hitoshi/profilekeeper/internal/middleware"
	"github.com/hitoshi/profilekeeper/internal/view"
)

// IndexRenderer はトップページの描画インターフェース。
type IndexRenderer interface {
	RenderIndex(w http.ResponseWriter, data view.IndexData)
}

// NewIndexHandler はトップページのハンドラーを返す。
// ログイン状態に応じてログインリンクまたはプロフィールへのリンクを表示する。
// GET /
func NewIndexHandler(renderer IndexRenderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := view.IndexData{}
		if sess, ok := middleware.SessionFromContext(r.Context()); ok {
			data.Page = view.Page{SignedIn: true, Name: sess.Name}
		}
		renderer.RenderIndex(w, data)
	}
}
