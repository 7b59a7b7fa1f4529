package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// startedWriter はレスポンスの書き込みが始まったかを記録する。
type startedWriter struct {
	http.ResponseWriter
	started bool
}

func (sw *startedWriter) WriteHeader(code int) {
	sw.started = true
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *startedWriter) Write(b []byte) (int, error) {
	sw.started = true
	return sw.ResponseWriter.Write(b)
}

// Unwrap はhttp.ResponseControllerから元のResponseWriterを参照できるようにする。
func (sw *startedWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// NewRecoveryMiddleware はpanicを回収し、エラーページとして500を返すミドルウェアを生成する。
// ハンドラーがすでにレスポンスを書き始めていた場合は、ログのみ出力して何も書き足さない。
// http.ErrAbortHandlerはnet/httpの中断シグナルのため、そのまま再送出する。
func NewRecoveryMiddleware(renderer ErrorRenderer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &startedWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.Bool("response_started", sw.started),
					slog.String("stack", string(debug.Stack())),
				)
				if !sw.started {
					WriteInternalServerError(sw, renderer)
				}
			}()
			next.ServeHTTP(sw, r)
		})
	}
}
