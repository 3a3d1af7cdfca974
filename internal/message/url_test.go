package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/a/b.png", "https://example.com/a/b.png"},
		{"https://example.com/画像/photo 1.jpg", "https://example.com/%E7%94%BB%E5%83%8F/photo%201.jpg"},
		{"https://example.com/%e7%94%bb%e5%83%8f", "https://example.com/%E7%94%BB%E5%83%8F"},
		{"https://example.com/a%2Fb/c", "https://example.com/a%2Fb/c"},
		{"https://example.com/x?size=大&q=a b&flag", "https://example.com/x?size=%E5%A4%A7&q=a%20b&flag"},
		{"https://example.com/x?q=a+b&z=1&a=2", "https://example.com/x?q=a%20b&z=1&a=2"},
		{"https://example.com/x?redirect=https://other.example/", "https://example.com/x?redirect=https%3A%2F%2Fother.example%2F"},
		{"HTTPS://example.com:8443/a(1).png", "https://example.com:8443/a%281%29.png"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := NormalizeURL(got)
			require.NoError(t, err)
			assert.Equal(t, got, again, "not idempotent")
		})
	}
}

func TestNormalizeURLRejects(t *testing.T) {
	for _, in := range []string{"", "example.com/a.png", "mailto:a@example.com", "https:///nohost", "://bad"} {
		_, err := NormalizeURL(in)
		assert.Error(t, err, in)
	}
}
