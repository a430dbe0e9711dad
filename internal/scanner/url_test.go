package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Run("canonical forms collapse to one key", func(t *testing.T) {
		variants := []string{
			"http://Example.com/a/",
			"http://example.com:80/a",
			"http://example.com/a#section",
		}
		for _, v := range variants {
			got, err := NormalizeURL(v, "")
			require.NoError(t, err, v)
			require.Equal(t, "http://example.com/a", got, v)
		}
	})

	t.Run("normalization is idempotent", func(t *testing.T) {
		variants := []string{
			"http://Example.com/a/",
			"https://example.com/search?b=2&a=1",
			"https://example.com:443/x#top",
			"http://example.com/",
		}
		for _, v := range variants {
			once, err := NormalizeURL(v, "")
			require.NoError(t, err, v)
			twice, err := NormalizeURL(once, "")
			require.NoError(t, err, once)
			require.Equal(t, once, twice, v)
		}
	})

	t.Run("query parameters are sorted", func(t *testing.T) {
		got, err := NormalizeURL("https://example.com/search?b=2&a=1", "")
		require.NoError(t, err)
		require.Equal(t, "https://example.com/search?a=1&b=2", got)
	})

	t.Run("https default port is stripped", func(t *testing.T) {
		got, err := NormalizeURL("https://example.com:443/x", "")
		require.NoError(t, err)
		require.Equal(t, "https://example.com/x", got)
	})

	t.Run("relative reference resolves against base", func(t *testing.T) {
		got, err := NormalizeURL("../about", "http://example.com/docs/intro")
		require.NoError(t, err)
		require.Equal(t, "http://example.com/about", got)
	})

	t.Run("rejects non-http schemes", func(t *testing.T) {
		for _, raw := range []string{"ftp://example.com/f", "mailto:x@example.com", "javascript:void(0)"} {
			_, err := NormalizeURL(raw, "")
			require.ErrorIs(t, err, ErrInvalidURL, raw)
		}
	})

	t.Run("rejects unparseable input", func(t *testing.T) {
		_, err := NormalizeURL("http://exa mple.com/", "")
		require.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := NormalizeURL("", "")
		require.ErrorIs(t, err, ErrInvalidURL)
	})
}

func TestSameOrigin(t *testing.T) {
	require.True(t, SameOrigin("http://example.com/a", "http://EXAMPLE.com/b"))
	require.False(t, SameOrigin("http://example.com/a", "https://example.com/a"))
	require.False(t, SameOrigin("http://example.com/a", "http://other.com/a"))
	require.False(t, SameOrigin("http://sub.example.com/a", "http://example.com/a"))
}

func TestSkippableResource(t *testing.T) {
	require.True(t, skippableResource("http://example.com/logo.png"))
	require.True(t, skippableResource("http://example.com/report.PDF"))
	require.False(t, skippableResource("http://example.com/page"))
	require.False(t, skippableResource("http://example.com/page.html"))
}
