package triage

import (
	"fmt"
	"time"
)

// AnimateOutDuration はスワイプ確定後にカードが画面外へ退場するアニメーションの長さ。
const AnimateOutDuration = 250 * time.Millisecond

// CardState はスワイプカードの状態を表す。
type CardState string

const (
	// StateIdle は静止状態。ジェスチャー開始を待っている。
	StateIdle CardState = "idle"
	// StateDragging はドラッグ中。位置が連続的に追跡される。
	StateDragging CardState = "dragging"
	// StateDeciding はリリース直後。閾値判定が行われる。
	StateDeciding CardState = "deciding"
	// StateAnimatingOut は確定後の退場アニメーション中（固定長）。
	StateAnimatingOut CardState = "animating_out"
	// StateResetting は閾値未達後のスプリングバック中（固定長なし）。
	StateResetting CardState = "resetting"
	// StateTerminal は振り分け対象が尽きた終了状態。
	StateTerminal CardState = "terminal"
)

// Card はスワイプカードのジェスチャー状態機械。
//
//	Idle → Dragging → Deciding → AnimatingOut → Idle | Terminal
//	                           → Resetting    → Idle（同じ予定を再試行）
type Card struct {
	state CardState

	dx float64
	dy float64
	vx float64
}

// NewCard は静止状態のCardを生成する。
func NewCard() *Card {
	return &Card{state: StateIdle}
}

// State は現在の状態を返す。
func (c *Card) State() CardState {
	return c.state
}

// Begin はジェスチャー開始を通知する。Idle状態でのみ有効。
func (c *Card) Begin() error {
	if c.state != StateIdle {
		return fmt.Errorf("cannot begin gesture in state %s", c.state)
	}
	c.state = StateDragging
	c.dx, c.dy, c.vx = 0, 0, 0
	return nil
}

// Move はドラッグ中の位置と速度を更新する。Dragging状態以外では無視される。
func (c *Card) Move(dx, dy, vx float64) {
	if c.state != StateDragging {
		return
	}
	c.dx, c.dy, c.vx = dx, dy, vx
}

// LabelOpacity は左右のフィードバックラベルの不透明度を返す（0.0〜1.0）。
// ドラッグ距離に比例した視覚フィードバックであり、判定には関与しない。
func (c *Card) LabelOpacity() (left, right float64) {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	return clamp(-c.dx / SwipeThreshold), clamp(c.dx / SwipeThreshold)
}

// Release はジェスチャーのリリースを通知し、セッションで閾値判定を行う。
// 確定時はAnimatingOutへ、閾値未達時はResettingへ遷移する。
func (c *Card) Release(session *Session) (Outcome, error) {
	if c.state != StateDragging {
		return Outcome{}, fmt.Errorf("cannot release gesture in state %s", c.state)
	}
	c.state = StateDeciding

	outcome := session.Release(c.dx, c.vx)
	if outcome.Decision == DecisionNone {
		c.state = StateResetting
	} else {
		c.state = StateAnimatingOut
	}
	return outcome, nil
}

// FinishAnimation はアニメーション完了を通知する。
// AnimatingOutからは次の予定のIdleへ、残りが無ければTerminalへ遷移する。
// Resettingからは同じ予定のIdleへ戻る。
func (c *Card) FinishAnimation(session *Session) error {
	switch c.state {
	case StateAnimatingOut:
		if session.Done() {
			c.state = StateTerminal
		} else {
			c.state = StateIdle
		}
	case StateResetting:
		c.state = StateIdle
	default:
		return fmt.Errorf("no animation in progress in state %s", c.state)
	}
	c.dx, c.dy, c.vx = 0, 0, 0
	return nil
}
