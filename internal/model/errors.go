// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, calendar, group, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthRequired      = "AUTH_REQUIRED"
	ErrCodeTokenMissing      = "TOKEN_MISSING"
	ErrCodeGoogleSyncFailed  = "GOOGLE_SYNC_FAILED"
	ErrCodeEventNotFound     = "EVENT_NOT_FOUND"
	ErrCodeEmptyTitle        = "EMPTY_TITLE"
	ErrCodeEmptyGroupName    = "EMPTY_GROUP_NAME"
	ErrCodeGroupNotFound     = "GROUP_NOT_FOUND"
	ErrCodeInvalidInviteCode = "INVALID_INVITE_CODE"
	ErrCodeGroupLimit        = "GROUP_LIMIT"
	ErrCodeMemberLimit       = "MEMBER_LIMIT"
	ErrCodeSessionExpired    = "SESSION_EXPIRED"
)

// NewAuthRequiredError は未ログイン状態でのアクセスエラーを生成する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewTokenMissingError はアクセストークン未設定でのカレンダー操作エラーを生成する。
func NewTokenMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenMissing,
		Message:  "Googleカレンダーのアクセストークンが設定されていません。",
		Category: "auth",
		Action:   "Googleアカウントを再連携してください。",
	}
}

// NewGoogleSyncFailedError はGoogleカレンダー同期失敗エラーを生成する。
// ローカルの予定は変更されない。
func NewGoogleSyncFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeGoogleSyncFailed,
		Message:  fmt.Sprintf("Googleカレンダーとの同期に失敗しました: %s", reason),
		Category: "calendar",
		Action:   "通信環境を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewEventNotFoundError は予定未検出エラーを生成する。
// ストア層の更新・削除は見つからない場合に黙って何もしないため、
// このエラーはHTTPレイヤーの取得系でのみ使用する。
func NewEventNotFoundError(eventID string) *APIError {
	return &APIError{
		Code:     ErrCodeEventNotFound,
		Message:  fmt.Sprintf("指定された予定が見つかりません: %s", eventID),
		Category: "calendar",
		Action:   "予定IDを確認してください。",
	}
}

// NewEmptyTitleError は予定タイトル未入力エラーを生成する。
func NewEmptyTitleError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyTitle,
		Message:  "予定のタイトルを入力してください。",
		Category: "validation",
		Action:   "タイトルを1文字以上入力してください。",
	}
}

// NewEmptyGroupNameError はグループ名未入力エラーを生成する。
func NewEmptyGroupNameError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyGroupName,
		Message:  "グループ名を入力してください。",
		Category: "validation",
		Action:   "グループ名を1文字以上入力してください。",
	}
}

// NewGroupNotFoundError はグループ未検出エラーを生成する。
func NewGroupNotFoundError(groupID string) *APIError {
	return &APIError{
		Code:     ErrCodeGroupNotFound,
		Message:  fmt.Sprintf("指定されたグループが見つかりません: %s", groupID),
		Category: "group",
		Action:   "グループIDを確認してください。",
	}
}

// NewInvalidInviteCodeError は招待コード不一致エラーを生成する。
// ストア層では「該当なし」シグナル（nil）として扱い、HTTPレイヤーでこのエラーに変換する。
func NewInvalidInviteCodeError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInviteCode,
		Message:  fmt.Sprintf("招待コードに一致するグループがありません: %s", code),
		Category: "group",
		Action:   "招待コードを確認して再度入力してください。",
	}
}

// NewGroupLimitError は無料プランのグループ数上限エラーを生成する。
func NewGroupLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeGroupLimit,
		Message:  fmt.Sprintf("作成できるグループ数の上限（%d件）に達しています。", FreePlanMaxGroups),
		Category: "group",
		Action:   "プランをアップグレードするか、不要なグループを削除してください。",
	}
}

// NewMemberLimitError は無料プランのメンバー数上限エラーを生成する。
func NewMemberLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeMemberLimit,
		Message:  fmt.Sprintf("グループに参加できるメンバー数の上限（%d人）に達しています。", FreePlanMaxMembersPerGroup),
		Category: "group",
		Action:   "プランをアップグレードしてください。",
	}
}

// NewSessionExpiredError はセッション失効エラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れました。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
