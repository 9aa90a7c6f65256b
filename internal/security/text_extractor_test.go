package security

import "testing"

func TestTextExtractor_Text(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"空文字列", "", ""},
		{"プレーンテキスト", "Forest rule proposed", "Forest rule proposed"},
		{"タグ除去", "<p>The <strong>EPA</strong> proposed</p>", "The EPA proposed"},
		{"scriptの中身も除去", "Hello<script>alert(1)</script> world", "Hello world"},
		{"エンティティ復元", "Fish &amp; Wildlife", "Fish & Wildlife"},
		{"空白の正規化", "<p>a</p>\n\n<p>b</p>", "a b"},
		{"画像タグのみ", `<img src="https://example.com/a.jpg">`, ""},
	}

	e := NewTextExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextExtractor_Idempotent(t *testing.T) {
	e := NewTextExtractor()
	first := e.Text("<div>Clean <em>Air</em> Act &amp; more</div>")
	if second := e.Text(first); second != first {
		t.Errorf("2回目の結果が異なります: %q != %q", second, first)
	}
}
