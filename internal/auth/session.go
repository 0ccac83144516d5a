package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entaku/ourcal/internal/model"
)

// session はトークンに紐づくサインイン状態を表す。
type session struct {
	userID    string
	expiresAt time.Time
}

// Sessions はBearerトークンのインメモリセッションストア。
// サインイン時にトークンを発行し、リクエストごとに検証する。
// プロセス再起動でセッションは失効する（クライアントは再サインインする）。
type Sessions struct {
	maxAge time.Duration

	mu      sync.RWMutex
	byToken map[string]session

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// NewSessions はSessionsを生成する。
func NewSessions(maxAge time.Duration) *Sessions {
	return &Sessions{
		maxAge:  maxAge,
		byToken: make(map[string]session),
		now:     time.Now,
	}
}

// Issue はユーザーの新しいセッショントークンを発行して返す。
func (s *Sessions) Issue(userID string) string {
	token := uuid.New().String()

	s.mu.Lock()
	s.byToken[token] = session{
		userID:    userID,
		expiresAt: s.now().Add(s.maxAge),
	}
	s.mu.Unlock()

	return token
}

// Validate はトークンを検証し、有効であればユーザーIDを返す。
// 未知のトークンは("", nil)、期限切れはセッション期限切れエラーを返す。
// 期限切れエントリはこのとき削除される。
func (s *Sessions) Validate(token string) (string, error) {
	s.mu.RLock()
	sess, ok := s.byToken[token]
	s.mu.RUnlock()

	if !ok {
		return "", nil
	}

	if s.now().After(sess.expiresAt) {
		s.mu.Lock()
		delete(s.byToken, token)
		s.mu.Unlock()
		return "", model.NewSessionExpiredError()
	}

	return sess.userID, nil
}

// Revoke はトークンを失効させる。未知のトークンは何もしない。
func (s *Sessions) Revoke(token string) {
	s.mu.Lock()
	delete(s.byToken, token)
	s.mu.Unlock()
}

// RevokeAll は全セッションを失効させる。サインアウト時に使用する。
func (s *Sessions) RevokeAll() {
	s.mu.Lock()
	s.byToken = make(map[string]session)
	s.mu.Unlock()
}

// Count は現在有効なセッション数を返す。テストおよびメトリクス用。
func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byToken)
}
