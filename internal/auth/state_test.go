package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/entaku/ourcal/internal/model"
	"github.com/entaku/ourcal/internal/storage"
)

func newTestState() (*State, *storage.Store) {
	store := storage.NewStore(storage.NewMemoryKV())
	return NewState(store, slog.New(slog.NewJSONHandler(io.Discard, nil))), store
}

// TestState_SignIn_Google はGoogleサインインでのユーザー構築を検証する。
func TestState_SignIn_Google(t *testing.T) {
	state, store := newTestState()
	ctx := context.Background()

	user, err := state.SignIn(ctx, &ProviderUserInfo{
		Provider:       "google",
		ProviderUserID: "sub-123",
		Name:           "山田太郎",
		Email:          "taro@example.com",
		AvatarURL:      "https://example.com/a.png",
		AccessToken:    "ya29.token",
	})
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	if user.ID != "google_sub-123" {
		t.Errorf("ID = %q, want %q", user.ID, "google_sub-123")
	}
	if user.GoogleID == nil || *user.GoogleID != "sub-123" {
		t.Error("GoogleID not set")
	}
	if user.LineID != nil {
		t.Error("LineID set for google sign-in")
	}
	if user.AvatarURL == nil || *user.AvatarURL != "https://example.com/a.png" {
		t.Error("AvatarURL not set")
	}

	// 永続化されていること
	saved, _ := store.User(ctx)
	if saved == nil || saved.ID != "google_sub-123" {
		t.Errorf("persisted user = %+v", saved)
	}
	token, _ := store.AccessToken(ctx)
	if token != "ya29.token" {
		t.Errorf("persisted token = %q, want %q", token, "ya29.token")
	}
}

// TestState_SignIn_Line はLINEサインインでのID構築を検証する。
func TestState_SignIn_Line(t *testing.T) {
	state, store := newTestState()
	ctx := context.Background()

	user, err := state.SignIn(ctx, &ProviderUserInfo{
		Provider:       "line",
		ProviderUserID: "U1234",
		Name:           "山田花子",
	})
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	if user.ID != "line_U1234" {
		t.Errorf("ID = %q, want %q", user.ID, "line_U1234")
	}
	if user.LineID == nil || *user.LineID != "U1234" {
		t.Error("LineID not set")
	}
	if user.GoogleID != nil {
		t.Error("GoogleID set for line sign-in")
	}
	if user.AvatarURL != nil {
		t.Error("AvatarURL set despite empty input")
	}

	// アクセストークンが無い場合はスロットを書かない
	token, _ := store.AccessToken(ctx)
	if token != "" {
		t.Errorf("persisted token = %q, want empty", token)
	}
}

// TestState_SignOut はサインアウトで全状態が消えることを検証する。
func TestState_SignOut(t *testing.T) {
	state, store := newTestState()
	ctx := context.Background()

	if _, err := state.SignIn(ctx, &ProviderUserInfo{Provider: "google", ProviderUserID: "sub-123", AccessToken: "token"}); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if err := state.CompleteOnboarding(ctx); err != nil {
		t.Fatalf("CompleteOnboarding returned error: %v", err)
	}

	if err := state.SignOut(ctx); err != nil {
		t.Fatalf("SignOut returned error: %v", err)
	}

	if state.CurrentUser() != nil {
		t.Error("CurrentUser != nil after sign-out")
	}
	if state.IsOnboarded() {
		t.Error("IsOnboarded = true after sign-out")
	}
	if token, _ := store.AccessToken(ctx); token != "" {
		t.Errorf("persisted token = %q after sign-out, want empty", token)
	}
}

// TestState_CompleteOnboarding はオンボーディングフラグの永続化を検証する。
func TestState_CompleteOnboarding(t *testing.T) {
	state, store := newTestState()
	ctx := context.Background()

	if state.IsOnboarded() {
		t.Error("IsOnboarded = true before completion")
	}
	if err := state.CompleteOnboarding(ctx); err != nil {
		t.Fatalf("CompleteOnboarding returned error: %v", err)
	}
	if !state.IsOnboarded() {
		t.Error("IsOnboarded = false after completion")
	}
	if onboarded, _ := store.IsOnboarded(ctx); !onboarded {
		t.Error("onboarding flag not persisted")
	}
}

// TestState_Load は保存済み状態の復元を検証する。
func TestState_Load(t *testing.T) {
	state, store := newTestState()
	ctx := context.Background()

	if _, err := state.SignIn(ctx, &ProviderUserInfo{Provider: "google", ProviderUserID: "sub-123", Name: "山田太郎"}); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if err := state.CompleteOnboarding(ctx); err != nil {
		t.Fatalf("CompleteOnboarding returned error: %v", err)
	}

	// 同じストレージから新しいStateへ復元する
	restored := NewState(store, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	user := restored.CurrentUser()
	if user == nil || user.ID != "google_sub-123" {
		t.Errorf("restored user = %+v", user)
	}
	if !restored.IsOnboarded() {
		t.Error("restored IsOnboarded = false, want true")
	}
}

// TestState_UpdateProfile は名前とアバターの更新を検証する。
func TestState_UpdateProfile(t *testing.T) {
	state, _ := newTestState()
	ctx := context.Background()

	if _, err := state.SignIn(ctx, &ProviderUserInfo{Provider: "google", ProviderUserID: "sub-123", Name: "山田太郎", Email: "taro@example.com"}); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	avatar := "https://example.com/new.png"
	updated, err := state.UpdateProfile(ctx, "新しい名前", &avatar)
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if updated.Name != "新しい名前" {
		t.Errorf("Name = %q, want %q", updated.Name, "新しい名前")
	}
	if updated.AvatarURL == nil || *updated.AvatarURL != avatar {
		t.Error("AvatarURL not updated")
	}
	if updated.Email != "taro@example.com" {
		t.Errorf("Email = %q, want unchanged", updated.Email)
	}

	// 空の名前は既存値を維持する
	kept, err := state.UpdateProfile(ctx, "", nil)
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if kept.Name != "新しい名前" {
		t.Errorf("Name = %q after empty update, want unchanged", kept.Name)
	}
}

// TestState_UpdateProfile_NotSignedIn は未サインインでの更新が認証エラーになることを検証する。
func TestState_UpdateProfile_NotSignedIn(t *testing.T) {
	state, _ := newTestState()

	_, err := state.UpdateProfile(context.Background(), "名前", nil)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAuthRequired {
		t.Errorf("err = %v, want AUTH_REQUIRED", err)
	}
}

// TestState_CurrentUser_ReturnsCopy はCurrentUserが内部状態のコピーを返すことを検証する。
func TestState_CurrentUser_ReturnsCopy(t *testing.T) {
	state, _ := newTestState()
	ctx := context.Background()

	if _, err := state.SignIn(ctx, &ProviderUserInfo{Provider: "google", ProviderUserID: "sub-123", Name: "山田太郎"}); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	u := state.CurrentUser()
	u.Name = "書き換え"
	if got := state.CurrentUser(); got.Name != "山田太郎" {
		t.Errorf("internal state mutated via copy: Name = %q", got.Name)
	}
}
