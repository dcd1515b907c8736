// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はフィードから抽出したテキストをサニタイズし、
// 記事タイトル経由のXSSなどのリスクから外部レンダラーを保護する。
// bluemondayのStrictPolicyにより全HTMLタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はフィード由来テキストのサニタイズ機能のインターフェース。
// 記事タイトルの保存前に使用される。
type TextSanitizerService interface {
	// CleanText は入力から全HTMLタグを除去し、エンティティをデコードした
	// プレーンテキストを返す。冪等であり、空入力には空文字列を返す。
	CleanText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（許可タグなし）を使用するため、scriptやimgを含む
// あらゆるマークアップが除去される。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// CleanText は全HTMLタグを除去したプレーンテキストを返す。
// bluemondayはタグ除去後にエンティティをエスケープして返すため、
// 表示用テキストとしてアンエスケープしてから前後の空白を落とす。
func (s *textSanitizer) CleanText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
