package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextExtractor は記事の説明文などに含まれるHTMLを取り除き、プレーンテキストにする。
// bluemondayのStrictPolicyは並行利用に対して安全。
type TextExtractor struct {
	policy *bluemonday.Policy
}

// NewTextExtractor はすべてのタグを除去するTextExtractorを生成する。
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{policy: bluemonday.StrictPolicy()}
}

// Text はタグを除去し、エンティティを復元して連続する空白を1つにまとめる。
func (e *TextExtractor) Text(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	stripped := e.policy.Sanitize(rawHTML)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}
