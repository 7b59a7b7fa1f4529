package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/profilekeeper/internal/auth"
	"github.com/hitoshi/profilekeeper/internal/model"
	"github.com/hitoshi/profilekeeper/internal/profile"
	"github.com/hitoshi/profilekeeper/internal/view"
)

// --- モック定義 ---

type mockLoginFlow struct {
	buildFn    func(w http.ResponseWriter) (string, error)
	completeFn func(ctx context.Context, w http.ResponseWriter, r *http.Request) (*auth.Claims, error)
}

func (m *mockLoginFlow) BuildAuthorizationRedirect(w http.ResponseWriter) (string, error) {
	if m.buildFn != nil {
		return m.buildFn(w)
	}
	return "https://idp.example.com/authorize?state=s", nil
}

func (m *mockLoginFlow) CompleteLogin(ctx context.Context, w http.ResponseWriter, r *http.Request) (*auth.Claims, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, w, r)
	}
	return &auth.Claims{Email: "a@x.com", Name: "Ana"}, nil
}

type mockSessions struct {
	currentFn   func(ctx context.Context, r *http.Request) (*model.Session, error)
	establishFn func(ctx context.Context, w http.ResponseWriter, email, name string) (*model.Session, error)
	clearFn     func(ctx context.Context, w http.ResponseWriter, r *http.Request) error
	discardFn   func(ctx context.Context, w http.ResponseWriter, id string) error

	established int
	cleared     int
	discarded   []string
}

func (m *mockSessions) Current(ctx context.Context, r *http.Request) (*model.Session, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx, r)
	}
	return nil, nil
}

func (m *mockSessions) Establish(ctx context.Context, w http.ResponseWriter, email, name string) (*model.Session, error) {
	m.established++
	if m.establishFn != nil {
		return m.establishFn(ctx, w, email, name)
	}
	return &model.Session{ID: "sess-1", Email: email, Name: name}, nil
}

func (m *mockSessions) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	m.cleared++
	if m.clearFn != nil {
		return m.clearFn(ctx, w, r)
	}
	return nil
}

func (m *mockSessions) Discard(ctx context.Context, w http.ResponseWriter, id string) error {
	m.discarded = append(m.discarded, id)
	if m.discardFn != nil {
		return m.discardFn(ctx, w, id)
	}
	return nil
}

type mockProfiles struct {
	ensureFn func(ctx context.Context, email string) (*model.Profile, error)
	getFn    func(ctx context.Context, email string) (*model.Profile, error)
	updateFn func(ctx context.Context, email string, in profile.UpdateInput) (*model.Profile, error)

	ensured int
	updated int
}

func (m *mockProfiles) EnsureProfile(ctx context.Context, email string) (*model.Profile, error) {
	m.ensured++
	if m.ensureFn != nil {
		return m.ensureFn(ctx, email)
	}
	return &model.Profile{ID: 1, Email: email}, nil
}

func (m *mockProfiles) Get(ctx context.Context, email string) (*model.Profile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, email)
	}
	return &model.Profile{ID: 1, Email: email}, nil
}

func (m *mockProfiles) Update(ctx context.Context, email string, in profile.UpdateInput) (*model.Profile, error) {
	m.updated++
	if m.updateFn != nil {
		return m.updateFn(ctx, email, in)
	}
	return &model.Profile{ID: 1, Email: email, Nickname: in.Nickname, Address: in.Address}, nil
}

type mockRecorder struct {
	successes int
	failures  []string
	logouts   int
}

func (m *mockRecorder) RecordLoginSuccess()              { m.successes++ }
func (m *mockRecorder) RecordLoginFailure(reason string) { m.failures = append(m.failures, reason) }
func (m *mockRecorder) RecordLogout()                    { m.logouts++ }

// stubRenderer は描画内容を記録し、最低限のHTMLを書き込むレンダラー。
type stubRenderer struct {
	index   *view.IndexData
	profile *view.ProfileData
	status  int
	apiErr  *model.APIError
}

func (s *stubRenderer) RenderIndex(w http.ResponseWriter, data view.IndexData) {
	s.index = &data
	s.status = http.StatusOK
	w.WriteHeader(http.StatusOK)
}

func (s *stubRenderer) RenderProfile(w http.ResponseWriter, statusCode int, data view.ProfileData) {
	s.profile = &data
	s.status = statusCode
	w.WriteHeader(statusCode)
}

func (s *stubRenderer) RenderError(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	s.apiErr = apiErr
	s.status = statusCode
	w.WriteHeader(statusCode)
}

// compile-time interface check
var (
	_ LoginFlow      = (*mockLoginFlow)(nil)
	_ SessionManager = (*mockSessions)(nil)
	_ ProfileManager = (*mockProfiles)(nil)
	_ LoginRecorder  = (*mockRecorder)(nil)
	_ PageRenderer   = (*stubRenderer)(nil)
)
