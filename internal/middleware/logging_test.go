package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/profilekeeper/internal/model"
)

type recordingObserver struct {
	method   string
	status   int
	observed bool
}

func (o *recordingObserver) ObserveHTTPRequest(method string, status int, duration time.Duration) {
	o.method, o.status, o.observed = method, status, true
}

func parseLogEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

// TestLoggingMiddleware_LogsRequestFields はリクエストログに必要なフィールドが含まれることを検証する。
func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := NewLoggingMiddleware(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profile", nil))

	entry := parseLogEntry(t, &buf)

	if entry["msg"] != "http_request" {
		t.Errorf("msg = %q, want %q", entry["msg"], "http_request")
	}
	if entry["method"] != "GET" {
		t.Errorf("method = %q, want %q", entry["method"], "GET")
	}
	if entry["path"] != "/profile" {
		t.Errorf("path = %q, want %q", entry["path"], "/profile")
	}
	if status, ok := entry["status"].(float64); !ok || status != 200 {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("expected 'duration_ms' field in log entry")
	}
	if entry["authenticated"] != false {
		t.Errorf("authenticated = %v, want false", entry["authenticated"])
	}

	id, _ := entry["request_id"].(string)
	if id == "" {
		t.Fatal("expected 'request_id' field in log entry")
	}
	if hdr := w.Header().Get("X-Request-ID"); hdr != id {
		t.Errorf("X-Request-ID = %q, want %q", hdr, id)
	}
}

// TestLoggingMiddleware_MarksAuthenticated は内側のセッションミドルウェアが見つけたセッションがログに反映されることを検証する。
func TestLoggingMiddleware_MarksAuthenticated(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	loader := &mockSessionLoader{
		currentFn: func(ctx context.Context, r *http.Request) (*model.Session, error) {
			return validSession(), nil
		},
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := NewLoggingMiddleware(logger, nil)(NewSessionMiddleware(loader)(inner))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/profile", nil))

	entry := parseLogEntry(t, &buf)
	if entry["authenticated"] != true {
		t.Errorf("authenticated = %v, want true", entry["authenticated"])
	}
	if _, ok := entry["email"]; ok {
		t.Error("request log must not include the email")
	}
}

// TestLoggingMiddleware_LevelByStatus はステータスコードに応じてログレベルが変わることを検証する。
func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusSeeOther, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusUnauthorized, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			handler := NewLoggingMiddleware(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

			entry := parseLogEntry(t, &buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %q, want %q", entry["level"], tt.level)
			}
		})
	}
}

// TestLoggingMiddleware_ImplicitOKOnWrite はWriteHeaderなしのWriteで200が記録されることを検証する。
func TestLoggingMiddleware_ImplicitOKOnWrite(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	observer := &recordingObserver{}

	handler := NewLoggingMiddleware(logger, observer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/profile", nil))

	if !observer.observed || observer.status != http.StatusOK || observer.method != http.MethodPost {
		t.Errorf("observer = %+v, want POST 200", observer)
	}
}

// TestRequestIDFromContext_WithoutMiddleware はロギングミドルウェア外では空文字を返すことを検証する。
func TestRequestIDFromContext_WithoutMiddleware(t *testing.T) {
	if id := RequestIDFromContext(context.Background()); id != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty", id)
	}
}
