// Package validation はリクエスト入力の検証ヘルパーを提供する。
// 検証失敗はフィールド単位で収集し、まとめてmodel.APIErrorとして返す。
package validation

import (
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/tweetstream/internal/model"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Errors はフィールド単位の検証エラーを収集する。
type Errors []model.FieldError

// Check はokがfalseの場合にfieldの検証エラーを追加する。
func (e *Errors) Check(ok bool, field, message string) {
	if !ok {
		*e = append(*e, model.FieldError{Field: field, Message: message})
	}
}

// Err は検証エラーが1件以上あればAPIErrorを返す。なければnilを返す。
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return model.NewValidationError("Validation failed", e...)
}

// Length は文字数（バイト数ではなくルーン数）がmin以上max以下であればtrueを返す。
func Length(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

// IsUsername はユーザー名が3-50文字の英数字とアンダースコアであればtrueを返す。
func IsUsername(s string) bool {
	return Length(s, 3, 50) && usernamePattern.MatchString(s)
}

// IsEmail はメールアドレス形式であればtrueを返す。
// 表示名付きの形式（"Name <a@example.com>"）は受け付けない。
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}

// IsHTTPURL はhttpまたはhttpsの絶対URLであればtrueを返す。
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// ParsePage はクエリ文字列のpage/limitを検証してmodel.Pageに変換する。
// 省略時はpage=1、limit=model.DefaultPageLimit。
// pageはmodel.MaxPageまでとし、OFFSETの桁あふれを防ぐ。
func ParsePage(page, limit string) (model.Page, error) {
	p := model.Page{Page: 1, Limit: model.DefaultPageLimit}
	var errs Errors

	if page != "" {
		n, err := strconv.Atoi(page)
		errs.Check(err == nil && n >= 1 && n <= model.MaxPage, "page", "Page must be a positive integer")
		p.Page = n
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		errs.Check(err == nil && n >= 1 && n <= model.MaxPageLimit, "limit", "Limit must be between 1 and 50")
		p.Limit = n
	}

	if err := errs.Err(); err != nil {
		return model.Page{}, err
	}
	return p, nil
}
