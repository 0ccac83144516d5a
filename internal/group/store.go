// Package group はグループとメンバーシップの管理機能を提供する。
// 招待コードの生成・照合、参加・退出のロジックを含む。
package group

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entaku/ourcal/internal/model"
	"github.com/entaku/ourcal/internal/storage"
)

// inviteCodeChars は招待コードに使用する文字集合（大文字英数字のみ）。
const inviteCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Persister はグループとメンバーシップの永続化に必要なインターフェース。
// storage.Storeの部分集合として定義する。
type Persister interface {
	Groups(ctx context.Context) ([]model.Group, error)
	SetGroups(ctx context.Context, groups []model.Group) error
	GroupMembers(ctx context.Context) ([]model.GroupMember, error)
	SetGroupMembers(ctx context.Context, members []model.GroupMember) error
}

// Store はグループとメンバーシップのコレクションを排他的に所有するインメモリストア。
// グループ作成と管理者メンバーシップ作成は同一ロック内で行われ、
// 片方だけが適用された状態は観測できない。
type Store struct {
	persister Persister
	queue     *storage.WriteBehind
	logger    *slog.Logger

	mu      sync.RWMutex
	groups  []model.Group
	members []model.GroupMember
}

// NewStore はStoreを生成する。
func NewStore(persister Persister, queue *storage.WriteBehind, logger *slog.Logger) *Store {
	return &Store{
		persister: persister,
		queue:     queue,
		logger:    logger,
	}
}

// Load はストレージから保存済みのグループとメンバーシップを読み込む。
// 起動時に1回呼び出す。
func (s *Store) Load(ctx context.Context) error {
	groups, err := s.persister.Groups(ctx)
	if err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}
	members, err := s.persister.GroupMembers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load group members: %w", err)
	}

	s.mu.Lock()
	s.groups = groups
	s.members = members
	s.mu.Unlock()

	s.logger.Info("groups loaded",
		slog.Int("groups", len(groups)),
		slog.Int("members", len(members)),
	)
	return nil
}

// CreateGroup はグループを作成し、作成者をadminとして登録する。
// 招待コードは既存グループと衝突しないものが生成される。
func (s *Store) CreateGroup(name, userID string) (*model.Group, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.generateInviteCodeLocked()
	if err != nil {
		return nil, err
	}

	newGroup := model.Group{
		ID:         uuid.New().String(),
		Name:       name,
		InviteCode: code,
		CreatedBy:  userID,
		CreatedAt:  now,
	}
	newMember := model.GroupMember{
		ID:       uuid.New().String(),
		GroupID:  newGroup.ID,
		UserID:   userID,
		Role:     model.RoleAdmin,
		JoinedAt: now,
	}

	s.groups = append(s.groups, newGroup)
	s.members = append(s.members, newMember)
	s.persistLocked()

	s.logger.Info("group created",
		slog.String("group_id", newGroup.ID),
		slog.String("created_by", userID),
	)
	return &newGroup, nil
}

// JoinGroup は招待コードに一致するグループへユーザーを参加させる。
// コードに一致するグループが無い場合はnilを返す（エラーではなく「該当なし」シグナル）。
// 既にメンバーの場合は重複レコードを作らず既存グループを返す（冪等）。
func (s *Store) JoinGroup(inviteCode, userID string) *model.Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *model.Group
	for i := range s.groups {
		if s.groups[i].InviteCode == inviteCode {
			g := s.groups[i]
			target = &g
			break
		}
	}
	if target == nil {
		return nil
	}

	for _, m := range s.members {
		if m.GroupID == target.ID && m.UserID == userID {
			return target
		}
	}

	s.members = append(s.members, model.GroupMember{
		ID:       uuid.New().String(),
		GroupID:  target.ID,
		UserID:   userID,
		Role:     model.RoleMember,
		JoinedAt: time.Now(),
	})
	s.persistLocked()

	s.logger.Info("user joined group",
		slog.String("group_id", target.ID),
		slog.String("user_id", userID),
	)
	return target
}

// LeaveGroup は指定ユーザーのメンバーシップを削除する（本人の退出操作）。
// メンバーシップが無い場合は何もしない。
func (s *Store) LeaveGroup(groupID, userID string) {
	s.removeMembership(groupID, userID)
}

// RemoveMember は指定ユーザーのメンバーシップを削除する（管理者による除名操作）。
// 削除のセマンティクスはLeaveGroupと同一で、権限の確認は呼び出し側の責務。
func (s *Store) RemoveMember(groupID, userID string) {
	s.removeMembership(groupID, userID)
}

// DeleteGroup はグループを削除し、そのグループを参照する全メンバーシップを
// カスケード削除する。
func (s *Store) DeleteGroup(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.groups[:0]
	for _, g := range s.groups {
		if g.ID != groupID {
			kept = append(kept, g)
		}
	}
	s.groups = kept

	keptMembers := s.members[:0]
	for _, m := range s.members {
		if m.GroupID != groupID {
			keptMembers = append(keptMembers, m)
		}
	}
	s.members = keptMembers

	s.persistLocked()
}

// GroupByID は指定IDのグループを返す。見つからない場合はnilを返す。
func (s *Store) GroupByID(id string) *model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.groups {
		if s.groups[i].ID == id {
			g := s.groups[i]
			return &g
		}
	}
	return nil
}

// GroupByInviteCode は招待コードに一致するグループを返す。見つからない場合はnilを返す。
// 参加前のメンバー数上限チェックに使用する。
func (s *Store) GroupByInviteCode(code string) *model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.groups {
		if s.groups[i].InviteCode == code {
			g := s.groups[i]
			return &g
		}
	}
	return nil
}

// Groups は全グループのスナップショットを返す。
func (s *Store) Groups() []model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]model.Group, len(s.groups))
	copy(snapshot, s.groups)
	return snapshot
}

// GroupsForUser は指定ユーザーがメンバーであるグループの一覧を返す。
func (s *Store) GroupsForUser(userID string) []model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	memberOf := make(map[string]bool)
	for _, m := range s.members {
		if m.UserID == userID {
			memberOf[m.GroupID] = true
		}
	}

	var result []model.Group
	for _, g := range s.groups {
		if memberOf[g.ID] {
			result = append(result, g)
		}
	}
	return result
}

// MembersForGroup は指定グループのメンバーシップ一覧を返す。
func (s *Store) MembersForGroup(groupID string) []model.GroupMember {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.GroupMember
	for _, m := range s.members {
		if m.GroupID == groupID {
			result = append(result, m)
		}
	}
	return result
}

// removeMembership は(groupID, userID)に一致するメンバーシップを削除する。
func (s *Store) removeMembership(groupID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.members {
		if m.GroupID == groupID && m.UserID == userID {
			s.members = append(s.members[:i], s.members[i+1:]...)
			s.persistLocked()
			return
		}
	}
}

// generateInviteCodeLocked は既存グループの招待コードと衝突しない
// 6文字の大文字英数字コードを生成する。呼び出し側がs.muを保持していること。
func (s *Store) generateInviteCodeLocked() (string, error) {
	inUse := make(map[string]bool, len(s.groups))
	for _, g := range s.groups {
		inUse[g.InviteCode] = true
	}

	// 36^6通りの空間に対してグループ数は高々数件のため、数回で必ず抜ける。
	for {
		code, err := randomInviteCode()
		if err != nil {
			return "", err
		}
		if !inUse[code] {
			return code, nil
		}
	}
}

// randomInviteCode は6文字の大文字英数字コードを生成する。
// 256は36で割り切れないため、単純な剰余では先頭の文字が偏る。
// 36の倍数に収まらないバイトは棄却して読み直す。
func randomInviteCode() (string, error) {
	const limit = 256 - 256%len(inviteCodeChars)

	code := make([]byte, 0, model.InviteCodeLength)
	buf := make([]byte, 1)
	for len(code) < model.InviteCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		if int(buf[0]) >= limit {
			continue
		}
		code = append(code, inviteCodeChars[int(buf[0])%len(inviteCodeChars)])
	}
	return string(code), nil
}

// persistLocked は現在のコレクションのスナップショットを書き込みキューへ渡す。
// 呼び出し側がs.muを保持していること。
func (s *Store) persistLocked() {
	groups := make([]model.Group, len(s.groups))
	copy(groups, s.groups)
	members := make([]model.GroupMember, len(s.members))
	copy(members, s.members)

	s.queue.Enqueue(storage.KeyGroups, func(ctx context.Context) error {
		return s.persister.SetGroups(ctx, groups)
	})
	s.queue.Enqueue(storage.KeyGroupMembers, func(ctx context.Context) error {
		return s.persister.SetGroupMembers(ctx, members)
	})
}
