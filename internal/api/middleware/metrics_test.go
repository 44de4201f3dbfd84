package middleware

import "testing"

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/webhook", "/webhook"},
		{"/messages", "/messages"},
		{"/health/ready", "/health/ready"},
		{"/", "/"},
		{"/wp-admin.php", "/unmatched"},
		{"/messages/../../etc/passwd", "/unmatched"},
		{"/some/random/404", "/unmatched"},
	}
	for _, tc := range cases {
		if got := normalizePath(tc.path); got != tc.want {
			t.Fatalf("normalizePath(%q): expected %q, got %q", tc.path, tc.want, got)
		}
	}
}
