package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entaku/ourcal/internal/model"
)

// Store はスロットごとの型付きエンコード/デコードを提供するKVのラッパー。
// 日時フィールドはJSONエンコード時にRFC3339文字列へ変換され、
// 読み出し時にtime.Timeへ復元される（秒単位で損失なし）。
type Store struct {
	kv KV
}

// NewStore はStoreを生成する。
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// User は保存済みユーザーを取得する。未保存の場合はnilを返す。
func (s *Store) User(ctx context.Context) (*model.User, error) {
	raw, ok, err := s.kv.Get(ctx, KeyUser)
	if err != nil || !ok {
		return nil, err
	}
	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode user slot: %w", err)
	}
	return &user, nil
}

// SetUser はユーザーを保存する。
func (s *Store) SetUser(ctx context.Context, user *model.User) error {
	return s.setJSON(ctx, KeyUser, user)
}

// RemoveUser は保存済みユーザーを削除する。
func (s *Store) RemoveUser(ctx context.Context) error {
	return s.kv.Remove(ctx, KeyUser)
}

// IsOnboarded はオンボーディング完了フラグを取得する。未保存の場合はfalseを返す。
func (s *Store) IsOnboarded(ctx context.Context) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, KeyIsOnboarded)
	if err != nil || !ok {
		return false, err
	}
	return raw == "true", nil
}

// SetIsOnboarded はオンボーディング完了フラグを保存する。
func (s *Store) SetIsOnboarded(ctx context.Context, v bool) error {
	if v {
		return s.kv.Set(ctx, KeyIsOnboarded, "true")
	}
	return s.kv.Set(ctx, KeyIsOnboarded, "false")
}

// AccessToken はGoogleカレンダーのアクセストークンを取得する。
// 未保存の場合は空文字列を返す。
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	raw, _, err := s.kv.Get(ctx, KeyAccessToken)
	return raw, err
}

// SetAccessToken はアクセストークンを保存する。
func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	return s.kv.Set(ctx, KeyAccessToken, token)
}

// RemoveAccessToken はアクセストークンを削除する。
func (s *Store) RemoveAccessToken(ctx context.Context) error {
	return s.kv.Remove(ctx, KeyAccessToken)
}

// Events は保存済みの予定コレクション全体を取得する。未保存の場合は空スライスを返す。
func (s *Store) Events(ctx context.Context) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	if err := s.getJSON(ctx, KeyEvents, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// SetEvents は予定コレクション全体を保存する。
func (s *Store) SetEvents(ctx context.Context, events []model.CalendarEvent) error {
	return s.setJSON(ctx, KeyEvents, events)
}

// Groups は保存済みのグループコレクション全体を取得する。
func (s *Store) Groups(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	if err := s.getJSON(ctx, KeyGroups, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// SetGroups はグループコレクション全体を保存する。
func (s *Store) SetGroups(ctx context.Context, groups []model.Group) error {
	return s.setJSON(ctx, KeyGroups, groups)
}

// GroupMembers は保存済みのメンバーシップコレクション全体を取得する。
func (s *Store) GroupMembers(ctx context.Context) ([]model.GroupMember, error) {
	var members []model.GroupMember
	if err := s.getJSON(ctx, KeyGroupMembers, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SetGroupMembers はメンバーシップコレクション全体を保存する。
func (s *Store) SetGroupMembers(ctx context.Context, members []model.GroupMember) error {
	return s.setJSON(ctx, KeyGroupMembers, members)
}

// Settings はアプリ設定を取得する。未保存の場合は初期設定を返す。
func (s *Store) Settings(ctx context.Context) (model.AppSettings, error) {
	raw, ok, err := s.kv.Get(ctx, KeySettings)
	if err != nil {
		return model.DefaultSettings(), err
	}
	if !ok {
		return model.DefaultSettings(), nil
	}
	var settings model.AppSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return model.DefaultSettings(), fmt.Errorf("failed to decode settings slot: %w", err)
	}
	return settings, nil
}

// SetSettings はアプリ設定を保存する。
func (s *Store) SetSettings(ctx context.Context, settings model.AppSettings) error {
	return s.setJSON(ctx, KeySettings, settings)
}

// ClearAll は全スロットを削除する。サインアウト時に使用する。
func (s *Store) ClearAll(ctx context.Context) error {
	keys := []string{
		KeyUser, KeyIsOnboarded, KeyAccessToken,
		KeyEvents, KeyGroups, KeyGroupMembers, KeySettings,
	}
	for _, key := range keys {
		if err := s.kv.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// getJSON は指定スロットのJSONをデコードする。スロットが空の場合はdestを変更しない。
func (s *Store) getJSON(ctx context.Context, key string, dest any) error {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("failed to decode slot %s: %w", key, err)
	}
	return nil
}

// setJSON は値をJSONエンコードして指定スロットへ書き込む。
func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode slot %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(raw))
}
