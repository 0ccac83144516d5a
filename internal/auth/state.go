package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/entaku/ourcal/internal/model"
	"github.com/entaku/ourcal/internal/storage"
)

// State は現在のユーザーとオンボーディング完了フラグを所有する。
// 永続化アダプターの薄いラッパーであり、UIに見せる予定・グループの
// 可視性判断の起点になる。
type State struct {
	store  *storage.Store
	logger *slog.Logger

	mu        sync.RWMutex
	user      *model.User
	onboarded bool
}

// NewState はStateを生成する。
func NewState(store *storage.Store, logger *slog.Logger) *State {
	return &State{
		store:  store,
		logger: logger,
	}
}

// Load はストレージから保存済みユーザーとオンボーディングフラグを読み込む。
// 起動時に1回呼び出す。
func (s *State) Load(ctx context.Context) error {
	user, err := s.store.User(ctx)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	onboarded, err := s.store.IsOnboarded(ctx)
	if err != nil {
		return fmt.Errorf("failed to load onboarding flag: %w", err)
	}

	s.mu.Lock()
	s.user = user
	s.onboarded = onboarded
	s.mu.Unlock()

	return nil
}

// SignIn はIdPから取得したユーザー情報でサインインする。
// ユーザーIDはプロバイダープレフィックス付き（"google_<sub>"等）で構築され、
// アクセストークンがあれば併せて保存する。作成済みユーザーを返す。
func (s *State) SignIn(ctx context.Context, info *ProviderUserInfo) (*model.User, error) {
	user := &model.User{
		ID:        fmt.Sprintf("%s_%s", info.Provider, info.ProviderUserID),
		Name:      info.Name,
		Email:     info.Email,
		CreatedAt: time.Now(),
	}
	if info.AvatarURL != "" {
		avatar := info.AvatarURL
		user.AvatarURL = &avatar
	}
	switch info.Provider {
	case "google":
		id := info.ProviderUserID
		user.GoogleID = &id
	case "line":
		id := info.ProviderUserID
		user.LineID = &id
	}

	if err := s.store.SetUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	if info.AccessToken != "" {
		if err := s.store.SetAccessToken(ctx, info.AccessToken); err != nil {
			return nil, fmt.Errorf("failed to save access token: %w", err)
		}
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	s.logger.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
	)
	return user, nil
}

// SignOut はサインアウトし、全スロットを削除する。
func (s *State) SignOut(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}

	s.mu.Lock()
	s.user = nil
	s.onboarded = false
	s.mu.Unlock()

	s.logger.Info("user signed out")
	return nil
}

// CompleteOnboarding はオンボーディング完了フラグを立てる。
func (s *State) CompleteOnboarding(ctx context.Context) error {
	if err := s.store.SetIsOnboarded(ctx, true); err != nil {
		return fmt.Errorf("failed to save onboarding flag: %w", err)
	}

	s.mu.Lock()
	s.onboarded = true
	s.mu.Unlock()

	return nil
}

// CurrentUser は現在サインイン中のユーザーを返す。未サインインの場合はnilを返す。
func (s *State) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsOnboarded はオンボーディング完了済みかを返す。
func (s *State) IsOnboarded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onboarded
}

// UpdateProfile は現在ユーザーの名前とアバターを更新する。
// 名前とアバター以外のフィールドは作成後に変更されない。
func (s *State) UpdateProfile(ctx context.Context, name string, avatarURL *string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return nil, model.NewAuthRequiredError()
	}

	updated := *s.user
	if name != "" {
		updated.Name = name
	}
	if avatarURL != nil {
		updated.AvatarURL = avatarURL
	}

	if err := s.store.SetUser(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	s.user = &updated
	u := updated
	return &u, nil
}
