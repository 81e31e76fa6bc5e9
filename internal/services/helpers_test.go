package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncateKeepsRunesIntact(t *testing.T) {
	require.Equal(t, "hello", truncate("hello", 10))
	require.Equal(t, "hel", truncate("hello", 3))
	require.Equal(t, "", truncate("hello", 0))

	// Multi-byte content must never be cut mid-rune.
	got := truncate("héllo wörld", 4)
	require.Equal(t, "héll", got)
	require.True(t, utf8.ValidString(got))

	emoji := strings.Repeat("🚚", 10)
	got = truncate(emoji, 3)
	require.Equal(t, strings.Repeat("🚚", 3), got)
	require.True(t, utf8.ValidString(got))
}

func TestNormaliseIDsDeduplicates(t *testing.T) {
	require.Nil(t, normaliseIDs(nil))
	require.Equal(t, []string{"a", "b"}, normaliseIDs([]string{" a", "b", "a", "", "  "}))
}
