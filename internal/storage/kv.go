// Package storage は名前付きスロットに対するキーバリュー永続化を提供する。
// インメモリのストアが正であり、storageへの書き込みはそれを永続化する手段にすぎない。
package storage

import "context"

// スロットキー。1つの関心事につき1スロットを割り当てる。
const (
	KeyUser         = "@user"
	KeyIsOnboarded  = "@is_onboarded"
	KeyAccessToken  = "@access_token"
	KeyEvents       = "@events"
	KeyGroups       = "@groups"
	KeyGroupMembers = "@group_members"
	KeySettings     = "@settings"
)

// KV はスロット単位のキーバリューストアのインターフェース。
type KV interface {
	// Get は指定キーの値を取得する。キーが存在しない場合はok=falseを返す。
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set は指定キーに値を書き込む。既存の値は上書きされる。
	Set(ctx context.Context, key, value string) error

	// Remove は指定キーを削除する。キーが存在しない場合も成功として扱う。
	Remove(ctx context.Context, key string) error
}
