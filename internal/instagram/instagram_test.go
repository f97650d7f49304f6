package instagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortcode(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.instagram.com/p/CxYz_12-a/", "CxYz_12-a"},
		{"https://instagram.com/reel/Abc123/?igsh=xyz", "Abc123"},
		{"https://www.instagram.com/reels/Def456", "Def456"},
		{"https://www.instagram.com/tv/Ghi789/", "Ghi789"},
	}
	for _, tt := range tests {
		got, err := Shortcode(tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got)
	}

	_, err := Shortcode("https://www.instagram.com/someone/")
	assert.ErrorIs(t, err, ErrShortcode)
}
