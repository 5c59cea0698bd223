package security

import "testing"

func TestSanitizeText(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "hello world", "hello world"},
		{"前後の空白を除去", "  hi  ", "hi"},
		{"タグを除去", "<b>bold</b> text", "bold text"},
		{"scriptは中身ごと除去", "before<script>alert(1)</script>after", "beforeafter"},
		{"イベント属性付きタグを除去", `<img src=x onerror="alert(1)">cat`, "cat"},
		{"記号は元の文字のまま", "Tom & Jerry > cats", "Tom & Jerry > cats"},
		{"マルチバイト文字", "<p>こんにちは</p>", "こんにちは"},
		{"空文字列", "", ""},
		{"タグのみ", "<br><hr>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeText_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	input := `<a href="javascript:x">link</a> #golang`

	first := s.SanitizeText(input)
	if second := s.SanitizeText(first); second != first {
		t.Errorf("not idempotent: %q -> %q", first, second)
	}
}

func TestTextSanitizerInterface(t *testing.T) {
	var _ TextSanitizer = NewTextSanitizer()
}
