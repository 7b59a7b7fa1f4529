package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"
)

// ProviderConfig はOIDCプロバイダーの接続設定。
type ProviderConfig struct {
	IssuerURL    string        // 例: https://dev-123456.okta.com
	ClientID     string
	ClientSecret string
	RedirectURL  string        // BASE_URL + /authorize
	Timeout      time.Duration // プロバイダーへのHTTP呼び出しのタイムアウト
}

// OktaProvider はOIDCディスカバリとauthorization codeフローでOktaと連携する。
// PKCE(S256)とnonceを必ず付与する。
type OktaProvider struct {
	client   *http.Client
	provider *oidc.Provider
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOktaProvider はディスカバリドキュメントを取得してOktaProviderを生成する。
// 起動時にプロバイダーへ接続するため、到達できない場合はエラーを返す。
func NewOktaProvider(ctx context.Context, cfg ProviderConfig) (*OktaProvider, error) {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = cfg.Timeout

	p, err := oidc.NewProvider(oidc.ClientContext(ctx, client), cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover oidc provider: %w", err)
	}

	return &OktaProvider{
		client:   client,
		provider: p,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     p.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: p.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// AuthCodeURL はstate・nonce・PKCEチャレンジを含む認可エンドポイントのURLを返す。
func (p *OktaProvider) AuthCodeURL(state, nonce, verifier string) string {
	return p.config.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange は認可コードをトークンに交換し、IDトークンを検証してクレームを返す。
// 署名・issuer・audience・有効期限・nonceのいずれかが不正な場合はエラーを返す。
// IDトークンにnameが含まれない場合はuserinfoエンドポイントから補完する。
func (p *OktaProvider) Exchange(ctx context.Context, code, verifier, nonce string) (*Claims, error) {
	ctx = oidc.ClientContext(ctx, p.client)

	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(nonce)) != 1 {
		return nil, fmt.Errorf("id token nonce mismatch")
	}

	var c struct {
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("failed to extract id token claims: %w", err)
	}

	claims := &Claims{
		Subject:       idToken.Subject,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		Name:          c.Name,
	}

	if claims.Name == "" {
		claims.Name = p.fetchName(ctx, token)
	}

	return claims, nil
}

// fetchName はuserinfoエンドポイントからnameを取得する。
// 取得できなくてもログインは継続するため、失敗時は空文字を返す。
func (p *OktaProvider) fetchName(ctx context.Context, token *oauth2.Token) string {
	info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		slog.Warn("failed to fetch userinfo", slog.String("error", err.Error()))
		return ""
	}

	var u struct {
		Name string `json:"name"`
	}
	if err := info.Claims(&u); err != nil {
		slog.Warn("failed to decode userinfo", slog.String("error", err.Error()))
		return ""
	}
	return u.Name
}

// compile-time interface check
var _ IdentityProvider = (*OktaProvider)(nil)
