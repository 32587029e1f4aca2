package util

import "testing"

func TestSanitizeText(t *testing.T) {
	cases := map[string]string{
		"ab\x00cd\x01\x02\n\txy": "abcd\n\txy",
		"GLU\u00a095.2":         "GLU 95.2",
		"  Na\x7f 140 ":          "Na 140",
		"":                       "",
	}
	for in, want := range cases {
		if got := SanitizeText(in); got != want {
			t.Fatalf("SanitizeText(%q) = %q, want %q", in, got, want)
		}
	}
}
