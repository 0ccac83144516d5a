package calendar

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MemoSanitizer はプロバイダー由来のメモ文字列を平文化する。
// Googleカレンダーのdescriptionは任意のHTMLを含みうるため、
// bluemondayのStrictPolicyで全タグを除去し、実体参照を復元して保存する。
type MemoSanitizer struct {
	policy *bluemonday.Policy
}

// NewMemoSanitizer はMemoSanitizerを生成する。
func NewMemoSanitizer() *MemoSanitizer {
	return &MemoSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はメモをサニタイズした平文を返す。
// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す（冪等）。
func (s *MemoSanitizer) Sanitize(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
