// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Session
	SecretKey     string `env:"SECRET_KEY,required,notEmpty"`
	SessionMaxAge int    `env:"SESSION_MAX_AGE" envDefault:"86400"`

	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// OIDC (Okta)
	OktaClientID     string        `env:"OKTA_CLIENT_ID,required,notEmpty"`
	OktaClientSecret string        `env:"OKTA_CLIENT_SECRET,required,notEmpty"`
	OktaDomain       string        `env:"OKTA_DOMAIN,required,notEmpty"`
	ProviderTimeout  time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`

	// Rate Limit（プロフィール更新のみ。ログインには適用しない）
	ProfileUpdateRatePerMin int `env:"PROFILE_UPDATE_RATE_PER_MIN" envDefault:"30"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"5000"`
	BaseURL    string `env:"BASE_URL" envDefault:"http://localhost:5000"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// Cookie
	CookieDomain string `env:"COOKIE_DOMAIN"`
	CookieSecure bool   `env:"-"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定の変数名をすべて含むエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		if missing := missingKeys(err); len(missing) > 0 {
			return nil, fmt.Errorf("required environment variables are not set: %v", missing)
		}
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.OktaDomain = normalizeDomain(cfg.OktaDomain)
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("BASE_URL must be an absolute URL: %q", cfg.BaseURL)
	}
	if cfg.SessionMaxAge <= 0 {
		return nil, fmt.Errorf("SESSION_MAX_AGE must be positive: %d", cfg.SessionMaxAge)
	}
	if cfg.ProviderTimeout <= 0 {
		return nil, fmt.Errorf("PROVIDER_TIMEOUT must be positive: %s", cfg.ProviderTimeout)
	}

	cfg.CookieSecure = base.Scheme == "https"

	return cfg, nil
}

// IssuerURL はOIDCディスカバリに使用するIssuer URLを返す。
// ディスカバリドキュメントは IssuerURL + "/.well-known/openid-configuration" から取得される。
func (c *Config) IssuerURL() string {
	return "https://" + c.OktaDomain
}

// CallbackURL はIdPからのリダイレクト先（/authorize）の絶対URLを返す。
func (c *Config) CallbackURL() string {
	return c.BaseURL + "/authorize"
}

// missingKeys は未設定・空の必須環境変数名を抽出する。
func missingKeys(err error) []string {
	errs := []error{err}

	var agg env.AggregateError
	if errors.As(err, &agg) {
		errs = agg.Errors
	}

	var missing []string
	for _, e := range errs {
		var notSet env.EnvVarIsNotSetError
		var empty env.EmptyEnvVarError
		switch {
		case errors.As(e, &notSet):
			missing = append(missing, notSet.Key)
		case errors.As(e, &empty):
			missing = append(missing, empty.Key)
		}
	}
	return missing
}

// normalizeDomain はスキームや末尾スラッシュ付きで指定されたドメインをホスト部のみに揃える。
func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimRight(domain, "/")
}
