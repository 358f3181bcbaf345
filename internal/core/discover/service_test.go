package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func siteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, body)
		}
	}
	mux.HandleFunc("/", page(`<html><body>
		<a href="/plans">Plans</a>
		<a href="/about">About us</a>
		<a href="https://elsewhere.example/plans">External</a>
	</body></html>`))
	mux.HandleFunc("/plans", page(`<html><body>
		<a href="/plans/boiler-cover">Boiler cover</a>
		<a href="/plans/home-cover#pricing">Home cover</a>
	</body></html>`))
	mux.HandleFunc("/plans/boiler-cover", page(`<html><body>ok</body></html>`))
	mux.HandleFunc("/plans/home-cover", page(`<html><body>ok</body></html>`))
	mux.HandleFunc("/about", page(`<html><body>ok</body></html>`))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestMapSiteCollectsSameDomainLinks(t *testing.T) {
	srv := siteServer(t)

	links, err := New().MapSite(context.Background(), Request{URL: srv.URL, Depth: 2})
	require.NoError(t, err)

	assert.Contains(t, links, srv.URL+"/plans")
	assert.Contains(t, links, srv.URL+"/about")
	assert.Contains(t, links, srv.URL+"/plans/boiler-cover")
	for _, l := range links {
		assert.NotContains(t, l, "elsewhere.example")
		assert.NotContains(t, l, "#")
	}
}

func TestMapSiteKeywordFilter(t *testing.T) {
	srv := siteServer(t)

	links, err := New().MapSite(context.Background(), Request{
		URL:      srv.URL,
		Depth:    2,
		Keywords: []string{"plan"},
	})
	require.NoError(t, err)

	require.NotEmpty(t, links)
	for _, l := range links {
		assert.Contains(t, l, "plan")
	}
	assert.NotContains(t, links, srv.URL+"/about")
}

func TestMapSiteHonorsLimit(t *testing.T) {
	srv := siteServer(t)

	links, err := New().MapSite(context.Background(), Request{URL: srv.URL, Depth: 2, Limit: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(links), 2)
}

func TestMapSiteSortedOutput(t *testing.T) {
	srv := siteServer(t)

	links, err := New().MapSite(context.Background(), Request{URL: srv.URL, Depth: 2})
	require.NoError(t, err)
	assert.IsIncreasing(t, links)
}

func TestMapSiteEmptyURL(t *testing.T) {
	_, err := New().MapSite(context.Background(), Request{})
	require.Error(t, err)
}

func TestDomainsMatch(t *testing.T) {
	assert.True(t, domainsMatch("www.acme.co.uk", "acme.co.uk", false))
	assert.False(t, domainsMatch("shop.acme.co.uk", "acme.co.uk", false))
	assert.True(t, domainsMatch("shop.acme.co.uk", "acme.co.uk", true))
	assert.False(t, domainsMatch("acme.co.uk", "other.co.uk", true))
}

func TestMatchesKeywords(t *testing.T) {
	assert.True(t, matchesKeywords("https://a.example/home-cover/plans", []string{"plan"}))
	assert.True(t, matchesKeywords("https://a.example/x?category=pricing", []string{"pricing"}))
	assert.False(t, matchesKeywords("https://a.example/about", []string{"plan", "price"}))
	assert.True(t, matchesKeywords("https://a.example/anything", nil))
}
