package goqueryextractor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractLinksResolvesAgainstBase(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<a href="/b">b</a>
<a href="http://a.test/">self</a>
<a href="c/d?x=1#frag">relative</a>
<a href="https://Other.test:443/e">other</a>
</body></html>`

	links, err := New().ExtractLinks([]byte(html), "http://a.test/dir/")
	require.NoError(t, err)
	require.Equal(t, []string{
		"http://a.test/b",
		"http://a.test/",
		"http://a.test/dir/c/d?x=1",
		"https://other.test/e",
	}, links)
}

func TestExtractLinksSkipsNonHTTPAndEmpty(t *testing.T) {
	t.Parallel()

	html := `<a href="">empty</a>
<a>no href</a>
<a href="mailto:me@a.test">mail</a>
<a href="javascript:void(0)">js</a>
<a href="ftp://a.test/file">ftp</a>
<a href="/ok">ok</a>`

	links, err := New().ExtractLinks([]byte(html), "http://a.test/")
	require.NoError(t, err)
	require.Equal(t, []string{"http://a.test/ok"}, links)
}

func TestExtractLinksDeduplicatesWithinDocument(t *testing.T) {
	t.Parallel()

	html := `<a href="/x">1</a><a href="/x#top">2</a><a href="http://A.test/x">3</a>`

	links, err := New().ExtractLinks([]byte(html), "http://a.test/")
	require.NoError(t, err)
	require.Equal(t, []string{"http://a.test/x"}, links)
}

func TestExtractLinksToleratesMalformedMarkup(t *testing.T) {
	t.Parallel()

	links, err := New().ExtractLinks([]byte(`<div><a href="/a">unclosed<p><a href='/b'`), "http://a.test/")
	require.NoError(t, err)
	require.Contains(t, links, "http://a.test/a")

	links, err = New().ExtractLinks([]byte{0xff, 0xfe, 0x00}, "http://a.test/")
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestExtractLinksInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := New().ExtractLinks([]byte(`<a href="/a">a</a>`), "http://%")
	require.Error(t, err)
}
