package source

import "testing"

func TestStripHTML(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"tags removed", "<p>hello <b>world</b></p>", "hello world"},
		{"entities unescaped", "Tom &amp; Jerry", "Tom & Jerry"},
		{"collapses whitespace", "line one\n\n  line   two", "line one line two"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripHTML(tc.input); got != tc.want {
				t.Errorf("stripHTML(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	got := normalizeWhitespace("  a\tb\n\nc  ")
	want := "a b c"
	if got != want {
		t.Errorf("normalizeWhitespace() = %q, want %q", got, want)
	}
}

func TestExcerpt(t *testing.T) {
	t.Run("shorter than max is untouched", func(t *testing.T) {
		got := excerpt("short text", 500)
		if got != "short text" {
			t.Errorf("excerpt() = %q", got)
		}
	})

	t.Run("truncates to rune count", func(t *testing.T) {
		long := ""
		for i := 0; i < 600; i++ {
			long += "x"
		}
		got := excerpt(long, 500)
		if len([]rune(got)) != 500 {
			t.Errorf("excerpt() length = %d, want 500", len([]rune(got)))
		}
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		multibyte := ""
		for i := 0; i < 10; i++ {
			multibyte += "héllo"
		}
		got := excerpt(multibyte, 5)
		if len([]rune(got)) != 5 {
			t.Errorf("excerpt() rune length = %d, want 5", len([]rune(got)))
		}
	})
}
