// Package security はユーザー入力の無害化と外部URLの安全性検証を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はツイート本文や自己紹介などのプレーンテキストからマークアップを除去する。
type TextSanitizer interface {
	// SanitizeText はHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// script/styleの中身も除去する。同一入力には同一出力を返す。
	SanitizeText(raw string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer は全タグを拒否するポリシーのTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はタグを除去する。
// bluemondayがエスケープした文字参照は元の文字に戻し、プレーンテキストとして保存できる形にする。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
