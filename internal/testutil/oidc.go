package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	fakeOIDCKeyID        = "test-key"
	fakeOIDCClientID     = "test-client-id"
	fakeOIDCClientSecret = "test-client-secret"
)

// OIDCUser はフェイクプロバイダーが発行するIDトークンの内容。
type OIDCUser struct {
	Subject       string
	Email         string
	EmailVerified *bool  // nilの場合はクレームを含めない
	Name          string // 空の場合はIDトークンに含めない
	UserInfoName  string // userinfoエンドポイントが返すname
}

// pendingAuth は発行済み認可コードに紐づく情報。
type pendingAuth struct {
	user        OIDCUser
	nonce       string
	challenge   string
	redirectURI string
}

// FakeOIDC はディスカバリ・JWKS・認可・トークン・userinfoの各エンドポイントを持つ
// テスト用のOIDCプロバイダー。IDトークンはRS256で署名する。
type FakeOIDC struct {
	Server *httptest.Server

	key *rsa.PrivateKey

	mu    sync.Mutex
	user  OIDCUser
	codes map[string]pendingAuth

	// NonceOverride が空でない場合、IDトークンのnonceをこの値で上書きする。
	NonceOverride string
	// SigningKey が設定されている場合、JWKSに載せていない鍵でIDトークンに署名する。
	SigningKey *rsa.PrivateKey
}

// NewFakeOIDC はフェイクプロバイダーを起動する。テスト終了時に自動で停止する。
func NewFakeOIDC(t testing.TB) *FakeOIDC {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("RSA鍵の生成に失敗: %v", err)
	}

	f := &FakeOIDC{
		key:   key,
		codes: make(map[string]pendingAuth),
		user:  OIDCUser{Subject: "sub-1", Email: "a@x.com", Name: "Ana Example"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", f.handleDiscovery)
	mux.HandleFunc("GET /keys", f.handleKeys)
	mux.HandleFunc("GET /authorize", f.handleAuthorize)
	mux.HandleFunc("POST /token", f.handleToken)
	mux.HandleFunc("GET /userinfo", f.handleUserInfo)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)

	return f
}

// Issuer はプロバイダーのissuer URLを返す。
func (f *FakeOIDC) Issuer() string { return f.Server.URL }

// ClientID はプロバイダーに登録済みのクライアントIDを返す。
func (f *FakeOIDC) ClientID() string { return fakeOIDCClientID }

// ClientSecret はプロバイダーに登録済みのクライアントシークレットを返す。
func (f *FakeOIDC) ClientSecret() string { return fakeOIDCClientSecret }

// SetUser は以降の認可で発行するユーザーを設定する。
func (f *FakeOIDC) SetUser(u OIDCUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = u
}

// Authorize は認可URLへアクセスし、リダイレクト先に付与されたcodeとstateを返す。
// ブラウザを介さずにプロバイダー単体をテストするためのヘルパー。
func (f *FakeOIDC) Authorize(t testing.TB, authURL string) (code, state string) {
	t.Helper()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Get(authURL)
	if err != nil {
		t.Fatalf("認可リクエストに失敗: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("認可レスポンスのステータス = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("リダイレクト先のパースに失敗: %v", err)
	}
	return loc.Query().Get("code"), loc.Query().Get("state")
}

func (f *FakeOIDC) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	base := f.Server.URL
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + "/authorize",
		"token_endpoint":                        base + "/token",
		"jwks_uri":                              base + "/keys",
		"userinfo_endpoint":                     base + "/userinfo",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"code_challenge_methods_supported":      []string{"S256"},
	})
}

func (f *FakeOIDC) handleKeys(w http.ResponseWriter, r *http.Request) {
	pub := f.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": fakeOIDCKeyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (f *FakeOIDC) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("client_id") != fakeOIDCClientID || q.Get("response_type") != "code" {
		http.Error(w, "invalid_request", http.StatusBadRequest)
		return
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		http.Error(w, "pkce required", http.StatusBadRequest)
		return
	}

	redirectURI, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || redirectURI.Host == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	code := rand.Text()
	f.mu.Lock()
	f.codes[code] = pendingAuth{
		user:        f.user,
		nonce:       q.Get("nonce"),
		challenge:   q.Get("code_challenge"),
		redirectURI: redirectURI.String(),
	}
	f.mu.Unlock()

	params := redirectURI.Query()
	params.Set("code", code)
	params.Set("state", q.Get("state"))
	redirectURI.RawQuery = params.Encode()
	http.Redirect(w, r, redirectURI.String(), http.StatusFound)
}

func (f *FakeOIDC) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID, clientSecret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if clientID != fakeOIDCClientID || clientSecret != fakeOIDCClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	code := r.PostForm.Get("code")
	f.mu.Lock()
	pending, found := f.codes[code]
	delete(f.codes, code)
	f.mu.Unlock()
	if !found || r.PostForm.Get("redirect_uri") != pending.redirectURI {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
	if base64.RawURLEncoding.EncodeToString(sum[:]) != pending.challenge {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	idToken, err := f.signIDToken(pending)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": "access-" + code,
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     idToken,
	})
}

func (f *FakeOIDC) signIDToken(pending pendingAuth) (string, error) {
	now := time.Now()
	nonce := pending.nonce
	if f.NonceOverride != "" {
		nonce = f.NonceOverride
	}

	claims := jwt.MapClaims{
		"iss":   f.Server.URL,
		"sub":   pending.user.Subject,
		"aud":   fakeOIDCClientID,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"nonce": nonce,
	}
	if pending.user.Email != "" {
		claims["email"] = pending.user.Email
	}
	if pending.user.EmailVerified != nil {
		claims["email_verified"] = *pending.user.EmailVerified
	}
	if pending.user.Name != "" {
		claims["name"] = pending.user.Name
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = fakeOIDCKeyID

	key := f.key
	if f.SigningKey != nil {
		key = f.SigningKey
	}
	return token.SignedString(key)
}

func (f *FakeOIDC) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	if len(r.Header.Get("Authorization")) <= len("Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	user := f.user
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"sub":   user.Subject,
		"email": user.Email,
		"name":  user.UserInfoName,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
