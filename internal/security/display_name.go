package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxDisplayNameLength はランク名として保存する最大文字数。
const maxDisplayNameLength = 64

// DisplayNameSanitizer はプロフィールAPIが返すランク表示名を無害化する。
// 表示名はメニューのラベル照合とログ出力に使うため、タグはすべて除去する。
type DisplayNameSanitizer struct {
	policy *bluemonday.Policy
}

// NewDisplayNameSanitizer はStrictPolicyを使うDisplayNameSanitizerを生成する。
func NewDisplayNameSanitizer() *DisplayNameSanitizer {
	return &DisplayNameSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、エンティティを戻して前後の空白を取り除く。
// 制御文字は削除し、64文字を超える部分は切り捨てる。
func (s *DisplayNameSanitizer) Sanitize(name string) string {
	cleaned := html.UnescapeString(s.policy.Sanitize(name))
	cleaned = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.TrimSpace(cleaned)

	if runes := []rune(cleaned); len(runes) > maxDisplayNameLength {
		cleaned = string(runes[:maxDisplayNameLength])
	}
	return cleaned
}
