// Package auth はOIDC（Okta）によるログインフローを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/profilekeeper/internal/cookie"
	"github.com/hitoshi/profilekeeper/internal/model"
	"golang.org/x/oauth2"
)

// 認証失敗を表す番兵エラー。
var (
	// ErrAuthFailure はログインフローのいずれかの検証に失敗したことを表す。
	ErrAuthFailure = errors.New("authentication failed")

	// ErrMalformedCallback はコールバックにstateやcodeが欠けていることを表す。
	// ErrAuthFailureの一種として扱われる。
	ErrMalformedCallback = fmt.Errorf("%w: malformed callback", ErrAuthFailure)
)

const (
	// FlowCookieName はログインフロー中のstate・nonce・PKCE verifierを保持するCookie名。
	FlowCookieName = "oidc_flow"

	flowPurpose = "oidc_flow"
	flowTTL     = 10 * time.Minute
)

// Claims は検証済みIDトークンから取り出したユーザー情報。
type Claims struct {
	Subject       string
	Email         string
	EmailVerified *bool // クレームが存在しない場合はnil
	Name          string
}

// IdentityProvider はOIDCプロバイダーとのやり取りを抽象化する。
type IdentityProvider interface {
	// AuthCodeURL は認可エンドポイントへのリダイレクトURLを生成する。
	AuthCodeURL(state, nonce, verifier string) string
	// Exchange は認可コードを交換し、検証済みのクレームを返す。
	Exchange(ctx context.Context, code, verifier, nonce string) (*Claims, error)
}

// ClientConfig はログインフローCookieの設定。
type ClientConfig struct {
	CookieSecure bool
	CookieDomain string
}

// Client はブラウザとのログインフロー（リダイレクトとコールバック）を管理する。
// フローの状態は署名付きCookieに保持し、サーバー側には持たない。
type Client struct {
	provider IdentityProvider
	signer   *cookie.Signer
	config   ClientConfig
}

// NewClient はClientを生成する。
func NewClient(provider IdentityProvider, signer *cookie.Signer, config ClientConfig) *Client {
	return &Client{
		provider: provider,
		signer:   signer,
		config:   config,
	}
}

// BuildAuthorizationRedirect はstate・nonce・PKCE verifierを生成してフローCookieに保存し、
// プロバイダーの認可エンドポイントURLを返す。
func (c *Client) BuildAuthorizationRedirect(w http.ResponseWriter) (string, error) {
	state := rand.Text()
	nonce := rand.Text()
	verifier := oauth2.GenerateVerifier()

	value, err := c.signer.Sign(flowPurpose, map[string]string{
		"state":    state,
		"nonce":    nonce,
		"verifier": verifier,
	}, flowTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign flow cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     FlowCookieName,
		Value:    value,
		Path:     "/",
		Domain:   c.config.CookieDomain,
		MaxAge:   int(flowTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	return c.provider.AuthCodeURL(state, nonce, verifier), nil
}

// CompleteLogin はコールバックを検証し、認可コードを交換してユーザーのクレームを返す。
// フローCookieは成否に関わらず削除する。失敗時はErrAuthFailureをラップしたエラーを返す。
func (c *Client) CompleteLogin(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Claims, error) {
	flowCookie, cookieErr := r.Cookie(FlowCookieName)
	c.clearFlowCookie(w)

	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		return nil, fmt.Errorf("%w: provider returned error %q: %s",
			ErrAuthFailure, providerErr, q.Get("error_description"))
	}

	state := q.Get("state")
	code := q.Get("code")
	if state == "" {
		return nil, fmt.Errorf("%w: missing state", ErrMalformedCallback)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrMalformedCallback)
	}

	if cookieErr != nil {
		return nil, fmt.Errorf("%w: missing flow cookie", ErrAuthFailure)
	}
	flow, err := c.signer.Verify(flowPurpose, flowCookie.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}
	if flow["state"] == "" || subtle.ConstantTimeCompare([]byte(flow["state"]), []byte(state)) != 1 {
		return nil, fmt.Errorf("%w: state mismatch", ErrAuthFailure)
	}

	claims, err := c.provider.Exchange(ctx, code, flow["verifier"], flow["nonce"])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailure, err)
	}

	if claims.Email == "" {
		return nil, fmt.Errorf("%w: id token has no email claim", ErrAuthFailure)
	}
	if n := utf8.RuneCountInString(claims.Email); n > model.MaxEmailLength {
		return nil, fmt.Errorf("%w: email claim is too long (%d characters)", ErrAuthFailure, n)
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, fmt.Errorf("%w: email is not verified", ErrAuthFailure)
	}
	if claims.Name == "" {
		claims.Name = claims.Email
	}
	claims.Name = truncateRunes(claims.Name, model.MaxNameLength)

	return claims, nil
}

func (c *Client) clearFlowCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlowCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// truncateRunes はsを先頭からlimit文字までに切り詰める。
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
