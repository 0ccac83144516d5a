package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/entaku/ourcal/internal/auth"
	"github.com/entaku/ourcal/internal/middleware"
	"github.com/entaku/ourcal/internal/model"
)

// mockAuthState はテスト用のAuthStateInterface実装。
type mockAuthState struct {
	signInFn             func(ctx context.Context, info *auth.ProviderUserInfo) (*model.User, error)
	signOutFn            func(ctx context.Context) error
	completeOnboardingFn func(ctx context.Context) error
	currentUserFn        func() *model.User
	isOnboardedFn        func() bool
	updateProfileFn      func(ctx context.Context, name string, avatarURL *string) (*model.User, error)
}

func (m *mockAuthState) SignIn(ctx context.Context, info *auth.ProviderUserInfo) (*model.User, error) {
	return m.signInFn(ctx, info)
}

func (m *mockAuthState) SignOut(ctx context.Context) error {
	return m.signOutFn(ctx)
}

func (m *mockAuthState) CompleteOnboarding(ctx context.Context) error {
	return m.completeOnboardingFn(ctx)
}

func (m *mockAuthState) CurrentUser() *model.User {
	return m.currentUserFn()
}

func (m *mockAuthState) IsOnboarded() bool {
	if m.isOnboardedFn == nil {
		return false
	}
	return m.isOnboardedFn()
}

func (m *mockAuthState) UpdateProfile(ctx context.Context, name string, avatarURL *string) (*model.User, error) {
	return m.updateProfileFn(ctx, name, avatarURL)
}

// mockSessionIssuer はテスト用のSessionIssuer実装。
type mockSessionIssuer struct {
	issuedFor  []string
	revokedAll bool
}

func (m *mockSessionIssuer) Issue(userID string) string {
	m.issuedFor = append(m.issuedFor, userID)
	return "session-token"
}

func (m *mockSessionIssuer) RevokeAll() {
	m.revokedAll = true
}

// mockProvider はテスト用のauth.Provider実装。
type mockProvider struct {
	name           string
	exchangeCodeFn func(ctx context.Context, code string) (*auth.ProviderUserInfo, error)
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) ExchangeCode(ctx context.Context, code string) (*auth.ProviderUserInfo, error) {
	return m.exchangeCodeFn(ctx, code)
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// TestAuthHandler_SignIn_Success はサインイン成功時のレスポンスを検証する。
func TestAuthHandler_SignIn_Success(t *testing.T) {
	provider := &mockProvider{
		name: "google",
		exchangeCodeFn: func(ctx context.Context, code string) (*auth.ProviderUserInfo, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want %q", code, "auth-code")
			}
			return &auth.ProviderUserInfo{Provider: "google", ProviderUserID: "sub-123", Name: "山田太郎"}, nil
		},
	}
	state := &mockAuthState{
		signInFn: func(ctx context.Context, info *auth.ProviderUserInfo) (*model.User, error) {
			return &model.User{ID: "google_sub-123", Name: info.Name}, nil
		},
		isOnboardedFn: func() bool { return true },
	}
	sessions := &mockSessionIssuer{}
	h := NewAuthHandler(state, sessions, map[string]auth.Provider{"google": provider})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google", strings.NewReader(`{"code":"auth-code"}`))
	rec := httptest.NewRecorder()
	h.SignIn("google")(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Token       string      `json:"token"`
		User        *model.User `json:"user"`
		IsOnboarded bool        `json:"isOnboarded"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token != "session-token" {
		t.Errorf("token = %q, want %q", resp.Token, "session-token")
	}
	if resp.User == nil || resp.User.ID != "google_sub-123" {
		t.Errorf("user = %+v", resp.User)
	}
	if !resp.IsOnboarded {
		t.Error("isOnboarded = false, want true")
	}
	if len(sessions.issuedFor) != 1 || sessions.issuedFor[0] != "google_sub-123" {
		t.Errorf("issuedFor = %v, want [google_sub-123]", sessions.issuedFor)
	}
}

// TestAuthHandler_SignIn_UnsupportedProvider は未設定プロバイダーで404になることを検証する。
func TestAuthHandler_SignIn_UnsupportedProvider(t *testing.T) {
	h := NewAuthHandler(&mockAuthState{}, &mockSessionIssuer{}, map[string]auth.Provider{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/line", strings.NewReader(`{"code":"x"}`))
	rec := httptest.NewRecorder()
	h.SignIn("line")(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if body := decodeAPIError(t, rec); body.Code != "PROVIDER_NOT_SUPPORTED" {
		t.Errorf("Code = %q, want PROVIDER_NOT_SUPPORTED", body.Code)
	}
}

// TestAuthHandler_SignIn_MissingCode は認可コードなしで400になることを検証する。
func TestAuthHandler_SignIn_MissingCode(t *testing.T) {
	provider := &mockProvider{name: "google"}
	h := NewAuthHandler(&mockAuthState{}, &mockSessionIssuer{}, map[string]auth.Provider{"google": provider})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.SignIn("google")(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if body := decodeAPIError(t, rec); body.Code != "MISSING_CODE" {
		t.Errorf("Code = %q, want MISSING_CODE", body.Code)
	}
}

// TestAuthHandler_SignIn_InvalidBody は不正なJSONで400になることを検証する。
func TestAuthHandler_SignIn_InvalidBody(t *testing.T) {
	provider := &mockProvider{name: "google"}
	h := NewAuthHandler(&mockAuthState{}, &mockSessionIssuer{}, map[string]auth.Provider{"google": provider})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google", strings.NewReader(`not-json`))
	rec := httptest.NewRecorder()
	h.SignIn("google")(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if body := decodeAPIError(t, rec); body.Code != "INVALID_REQUEST" {
		t.Errorf("Code = %q, want INVALID_REQUEST", body.Code)
	}
}

// TestAuthHandler_SignIn_ExchangeFailed はコード交換失敗で401になることを検証する。
func TestAuthHandler_SignIn_ExchangeFailed(t *testing.T) {
	provider := &mockProvider{
		name: "google",
		exchangeCodeFn: func(ctx context.Context, code string) (*auth.ProviderUserInfo, error) {
			return nil, errors.New("invalid_grant")
		},
	}
	h := NewAuthHandler(&mockAuthState{}, &mockSessionIssuer{}, map[string]auth.Provider{"google": provider})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google", strings.NewReader(`{"code":"expired"}`))
	rec := httptest.NewRecorder()
	h.SignIn("google")(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if body := decodeAPIError(t, rec); body.Code != model.ErrCodeAuthRequired {
		t.Errorf("Code = %q, want AUTH_REQUIRED", body.Code)
	}
}

// TestAuthHandler_SignOut はサインアウトで204と全セッション失効を検証する。
func TestAuthHandler_SignOut(t *testing.T) {
	var signedOut bool
	state := &mockAuthState{
		signOutFn: func(ctx context.Context) error {
			signedOut = true
			return nil
		},
	}
	sessions := &mockSessionIssuer{}
	h := NewAuthHandler(state, sessions, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signout", nil)
	rec := httptest.NewRecorder()
	h.SignOut(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if !signedOut {
		t.Error("SignOut not called on state")
	}
	if !sessions.revokedAll {
		t.Error("RevokeAll not called")
	}
}

// TestAuthHandler_CompleteOnboarding はオンボーディング完了のレスポンスを検証する。
func TestAuthHandler_CompleteOnboarding(t *testing.T) {
	state := &mockAuthState{
		completeOnboardingFn: func(ctx context.Context) error { return nil },
	}
	h := NewAuthHandler(state, &mockSessionIssuer{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/onboarding/complete", nil)
	rec := httptest.NewRecorder()
	h.CompleteOnboarding(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp["isOnboarded"] {
		t.Error("isOnboarded = false, want true")
	}
}

// TestAuthHandler_Me はサインイン済みユーザーの取得を検証する。
func TestAuthHandler_Me(t *testing.T) {
	state := &mockAuthState{
		currentUserFn: func() *model.User {
			return &model.User{ID: "google_sub-123", Name: "山田太郎"}
		},
		isOnboardedFn: func() bool { return true },
	}
	h := NewAuthHandler(state, &mockSessionIssuer{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		User        *model.User `json:"user"`
		IsOnboarded bool        `json:"isOnboarded"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.User == nil || resp.User.ID != "google_sub-123" {
		t.Errorf("user = %+v", resp.User)
	}
	if !resp.IsOnboarded {
		t.Error("isOnboarded = false, want true")
	}
}

// TestAuthHandler_Me_NotSignedIn は未サインインで401になることを検証する。
func TestAuthHandler_Me_NotSignedIn(t *testing.T) {
	state := &mockAuthState{
		currentUserFn: func() *model.User { return nil },
	}
	h := NewAuthHandler(state, &mockSessionIssuer{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestAuthHandler_UpdateMe はプロフィール更新を検証する。
func TestAuthHandler_UpdateMe(t *testing.T) {
	state := &mockAuthState{
		updateProfileFn: func(ctx context.Context, name string, avatarURL *string) (*model.User, error) {
			if name != "新しい名前" {
				t.Errorf("name = %q, want %q", name, "新しい名前")
			}
			return &model.User{ID: "google_sub-123", Name: name}, nil
		},
	}
	h := NewAuthHandler(state, &mockSessionIssuer{}, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/me", strings.NewReader(`{"name":"新しい名前"}`))
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var user model.User
	if err := json.NewDecoder(rec.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if user.Name != "新しい名前" {
		t.Errorf("Name = %q, want %q", user.Name, "新しい名前")
	}
}

// TestAuthHandler_UpdateMe_NotSignedIn は未サインインの更新で401になることを検証する。
func TestAuthHandler_UpdateMe_NotSignedIn(t *testing.T) {
	state := &mockAuthState{
		updateProfileFn: func(ctx context.Context, name string, avatarURL *string) (*model.User, error) {
			return nil, model.NewAuthRequiredError()
		},
	}
	h := NewAuthHandler(state, &mockSessionIssuer{}, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/me", strings.NewReader(`{"name":"x"}`))
	rec := httptest.NewRecorder()
	h.UpdateMe(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
