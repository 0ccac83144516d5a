package triage

import (
	"errors"
	"sync"

	"github.com/entaku/ourcal/internal/model"
)

// ErrNoSession はセッション未開始での操作を表す。
var ErrNoSession = errors.New("no active triage session")

// Manager は振り分けセッションとカード状態機械のライフサイクルを管理する。
// 同時に有効なセッションは1つで、新しいセッションの開始は前のセッションを破棄する。
// 一度振り分けたIDはManagerの生存期間中記憶され、次のセッションの対象から除かれる。
type Manager struct {
	toggler EventToggler

	mu      sync.Mutex
	session *Session
	card    *Card
	sorted  map[string]bool
}

// NewManager はManagerを生成する。
func NewManager(toggler EventToggler) *Manager {
	return &Manager{
		toggler: toggler,
		sorted:  make(map[string]bool),
	}
}

// Start は全予定から未振り分けの部分集合を取り出し、新しいセッションを開始する。
// 未振り分け件数を返す。0件でもセッションは開始される（最初から完了状態）。
func (m *Manager) Start(all []model.CalendarEvent) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	unsorted := Unsorted(all, m.sorted)
	m.session = NewSession(unsorted, m.toggler)
	m.card = NewCard()
	return len(unsorted)
}

// Active はセッションが開始済みかを返す。
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Current は現在提示中の予定を返す。セッション未開始または残りが無い場合はnil。
func (m *Manager) Current() *model.CalendarEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	return m.session.Current()
}

// Release は1回のスワイプジェスチャーを最初から最後まで実行する。
// カード状態機械をIdle→Dragging→Deciding→(AnimatingOut|Resetting)→次状態まで
// 進め、判定結果を返す。退場アニメーションの再生はクライアントの責務であり、
// サーバー側では待機しない。
func (m *Manager) Release(dx, vx float64) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return Outcome{}, ErrNoSession
	}

	if err := m.card.Begin(); err != nil {
		return Outcome{}, err
	}
	m.card.Move(dx, 0, vx)

	outcome, err := m.card.Release(m.session)
	if err != nil {
		return Outcome{}, err
	}
	if outcome.Decision != DecisionNone && outcome.Event != nil {
		m.sorted[outcome.Event.ID] = true
	}

	if err := m.card.FinishAnimation(m.session); err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

// Status はセッションの進捗とカード状態を返す。
// セッション未開始の場合は(0, 0, false, "")を返す。
func (m *Manager) Status() (sorted, total int, done bool, state CardState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return 0, 0, false, ""
	}
	sorted, total = m.session.Progress()
	return sorted, total, m.session.Done(), m.card.State()
}
