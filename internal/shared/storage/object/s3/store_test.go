package s3

import "testing"

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "ns/file.pdf", want: "ns/file.pdf"},
		{name: "simple prefix", prefix: "cases", key: "ns/file.pdf", want: "cases/ns/file.pdf"},
		{name: "prefix trailing slash", prefix: "cases/", key: "ns/file.pdf", want: "cases/ns/file.pdf"},
		{name: "prefix and key slashes", prefix: "/cases/", key: "/ns/file.pdf", want: "cases/ns/file.pdf"},
		{name: "empty key", prefix: "cases", key: "", want: "cases"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestNormalizePrefix(t *testing.T) {
	if got := normalizePrefix("  /uploads/ "); got != "uploads" {
		t.Fatalf("unexpected prefix %q", got)
	}
}
