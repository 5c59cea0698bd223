package validation

import (
	"errors"
	"strconv"
	"testing"

	"github.com/hitoshi/tweetstream/internal/model"
)

func TestIsUsername(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"alice", true},
		{"a_b_1", true},
		{"ab", false},
		{"has space", false},
		{"dash-name", false},
		{"x123456789012345678901234567890123456789012345678901", false},
	}
	for _, tt := range tests {
		if got := IsUsername(tt.in); got != tt.want {
			t.Errorf("IsUsername(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"alice@example.com", true},
		{"bob.smith@mail.example.org", true},
		{"not-an-email", false},
		{"Alice <alice@example.com>", false},
		{"alice@localhost", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsEmail(tt.in); got != tt.want {
			t.Errorf("IsEmail(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsHTTPURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://cdn.example.com/a.png", true},
		{"http://example.com", true},
		{"ftp://example.com/file", false},
		{"javascript:alert(1)", false},
		{"/relative/path", false},
	}
	for _, tt := range tests {
		if got := IsHTTPURL(tt.in); got != tt.want {
			t.Errorf("IsHTTPURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// 文字数はルーン単位で数える
func TestLength_CountsRunes(t *testing.T) {
	if !Length("こんにちは", 1, 5) {
		t.Error("5 multibyte characters should fit in max 5")
	}
	if Length("", 1, 5) {
		t.Error("empty string should not satisfy min 1")
	}
}

func TestErrors_Err(t *testing.T) {
	var errs Errors
	if errs.Err() != nil {
		t.Fatal("empty Errors should return nil")
	}

	errs.Check(true, "ok", "never added")
	errs.Check(false, "content", "Tweet content must be 1-280 characters")

	err := errs.Err()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Category != model.CategoryValidation {
		t.Errorf("Category = %q, want %q", apiErr.Category, model.CategoryValidation)
	}
	if len(apiErr.Details) != 1 || apiErr.Details[0].Field != "content" {
		t.Errorf("Details = %+v, want one entry for content", apiErr.Details)
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		limit     string
		want      model.Page
		wantField string
	}{
		{"既定値", "", "", model.Page{Page: 1, Limit: 20}, ""},
		{"指定値", "3", "50", model.Page{Page: 3, Limit: 50}, ""},
		{"page=0", "0", "", model.Page{}, "page"},
		{"page非数値", "abc", "", model.Page{}, "page"},
		{"page上限", "1000000", "50", model.Page{Page: 1000000, Limit: 50}, ""},
		{"page上限超過", "1000001", "", model.Page{}, "page"},
		{"page桁あふれ", "9223372036854775807", "50", model.Page{}, "page"},
		{"pageがintの範囲外", "99999999999999999999", "", model.Page{}, "page"},
		{"limit上限超過", "", "51", model.Page{}, "limit"},
		{"limit=0", "", "0", model.Page{}, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePage(tt.page, tt.limit)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ParsePage() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("ParsePage() = %+v, want %+v", got, tt.want)
				}
				return
			}

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if len(apiErr.Details) != 1 || apiErr.Details[0].Field != tt.wantField {
				t.Errorf("Details = %+v, want field %q", apiErr.Details, tt.wantField)
			}
		})
	}
}

func TestParsePage_OffsetNeverNegative(t *testing.T) {
	p, err := ParsePage(strconv.Itoa(model.MaxPage), strconv.Itoa(model.MaxPageLimit))
	if err != nil {
		t.Fatalf("ParsePage() error = %v", err)
	}
	if off := p.Offset(); off < 0 {
		t.Errorf("Offset() = %d, want non-negative", off)
	}
}
