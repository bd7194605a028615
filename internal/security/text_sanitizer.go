// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は利用者が入力したプレーンテキスト（氏名・電話番号など）から
// マークアップを除去するインターフェース。
type TextSanitizer interface {
	// Clean はタグを除去し、前後の空白を取り除いたテキストを返す。
	Clean(s string) string
}

// textSanitizer はbluemondayのstrictポリシーによるTextSanitizerの実装。
// ポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxCleanRounds はエンティティの多重エンコードを展開する最大回数。
const maxCleanRounds = 5

// Clean はタグを除去したテキストを返す。
// bluemondayは残したテキストをHTMLエスケープするため、保存用にアンエスケープする。
// アンエスケープでタグが復元されうるので、結果が変わらなくなるまで繰り返す。
// 上限回数で収束しない入力は山括弧を取り除く。
func (s *textSanitizer) Clean(in string) string {
	if in == "" {
		return ""
	}

	out := in
	for range maxCleanRounds {
		next := html.UnescapeString(s.policy.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	return strings.TrimSpace(strings.NewReplacer("<", "", ">", "").Replace(out))
}
