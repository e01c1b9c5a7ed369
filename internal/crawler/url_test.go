package crawler

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"already normal", "http://a.test/", "http://a.test/"},
		{"uppercase host", "HTTP://A.Test/Path", "http://a.test/Path"},
		{"default http port", "http://a.test:80/x", "http://a.test/x"},
		{"default https port", "https://a.test:443/x", "https://a.test/x"},
		{"non default port kept", "https://a.test:8443/x", "https://a.test:8443/x"},
		{"fragment dropped", "http://a.test/page#section", "http://a.test/page"},
		{"query order kept", "http://a.test/?b=2&a=1", "http://a.test/?b=2&a=1"},
		{"surrounding space", "  http://a.test/  ", "http://a.test/"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeURL(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestNormalizeURLRejectsRelative(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "not-a-url", "/b", "a.test/path"} {
		_, err := NormalizeURL(raw)
		require.Error(t, err, raw)
		require.True(t, errors.Is(err, ErrNotAbsolute), raw)
	}
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("http://a.test/dir/page.html")
	require.NoError(t, err)

	testCases := []struct {
		href     string
		expected string
	}{
		{"/b", "http://a.test/b"},
		{"c", "http://a.test/dir/c"},
		{"../d?x=1", "http://a.test/d?x=1"},
		{"#top", "http://a.test/dir/page.html"},
		{"HTTPS://Other.test:443/", "https://other.test/"},
		{"//cdn.test/lib.js", "http://cdn.test/lib.js"},
	}
	for _, tc := range testCases {
		got, err := ResolveURL(base, tc.href)
		require.NoError(t, err, tc.href)
		require.Equal(t, tc.expected, got, tc.href)
	}
}

func TestIsAbsoluteURL(t *testing.T) {
	t.Parallel()

	require.True(t, IsAbsoluteURL("http://a.test/"))
	require.True(t, IsAbsoluteURL("https://a.test"))
	require.False(t, IsAbsoluteURL(""))
	require.False(t, IsAbsoluteURL("not-a-url"))
	require.False(t, IsAbsoluteURL("/relative/path"))
	require.False(t, IsAbsoluteURL("http://%"))
}

func TestIsCrawlable(t *testing.T) {
	t.Parallel()

	require.True(t, IsCrawlable("http://a.test/"))
	require.True(t, IsCrawlable("https://a.test/"))
	require.False(t, IsCrawlable("mailto:me@a.test"))
	require.False(t, IsCrawlable("javascript:void(0)"))
	require.False(t, IsCrawlable("ftp://a.test/file"))
}
