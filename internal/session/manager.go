// Package session はサーバー側セッションの確立・参照・破棄を提供する。
// ブラウザには署名付きのセッションIDのみを渡し、ユーザー情報はsessionsテーブルに保持する。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/profilekeeper/internal/cookie"
	"github.com/hitoshi/profilekeeper/internal/model"
)

const (
	// CookieName はセッションハンドルを保持するCookie名。
	CookieName = "session"

	cookiePurpose = "session"
	sessionIDKey  = "sid"
)

// Store はセッションの永続化に必要な操作。
// repository.SessionRepositoryの部分集合として定義する。
type Store interface {
	Create(ctx context.Context, session *model.Session) error
	FindByID(ctx context.Context, id string) (*model.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

// Config はセッションCookieの設定。
type Config struct {
	MaxAge       time.Duration
	CookieSecure bool
	CookieDomain string
}

// Manager はセッションのライフサイクルを管理する。
type Manager struct {
	store  Store
	signer *cookie.Signer
	config Config
	now    func() time.Time
}

// NewManager はManagerを生成する。
func NewManager(store Store, signer *cookie.Signer, config Config) *Manager {
	return &Manager{
		store:  store,
		signer: signer,
		config: config,
		now:    time.Now,
	}
}

// Establish は検証済みのemailとnameでセッションを作成し、セッションCookieを設定する。
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, email, name string) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := m.now()
	sess := &model.Session{
		ID:        id,
		Email:     email,
		Name:      name,
		ExpiresAt: now.Add(m.config.MaxAge),
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	value, err := m.signer.Sign(cookiePurpose, map[string]string{sessionIDKey: id}, m.config.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Domain:   m.config.CookieDomain,
		MaxAge:   int(m.config.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	return sess, nil
}

// Current はリクエストのセッションを返す。
// Cookieがない・署名が不正・セッションが削除済みまたは期限切れの場合はnil, nilを返す。
func (m *Manager) Current(ctx context.Context, r *http.Request) (*model.Session, error) {
	id := m.sessionID(r)
	if id == "" {
		return nil, nil
	}

	sess, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if sess == nil || sess.IsExpired(m.now()) {
		return nil, nil
	}
	return sess, nil
}

// Clear はリクエストのセッションを破棄し、セッションCookieを失効させる。
// セッションが存在しない場合も成功として扱う。
func (m *Manager) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return m.Discard(ctx, w, m.sessionID(r))
}

// Discard は指定IDのセッションを破棄し、セッションCookieを失効させる。
// 同一リクエスト内で確立したばかりのセッションを取り消す場合に使う。
func (m *Manager) Discard(ctx context.Context, w http.ResponseWriter, id string) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	if id == "" {
		return nil
	}
	if err := m.store.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// sessionID はCookieから署名検証済みのセッションIDを取り出す。
func (m *Manager) sessionID(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return ""
	}

	values, err := m.signer.Verify(cookiePurpose, c.Value)
	if err != nil {
		slog.Debug("rejected session cookie", slog.String("error", err.Error()))
		return ""
	}
	return values[sessionIDKey]
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
