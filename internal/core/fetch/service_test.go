package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planPage = `<!DOCTYPE html>
<html><head><title>Boiler cover plans</title></head>
<body>
<nav class="navbar"><a href="/">Home</a><a href="/plans">Plans</a></nav>
<main>
<h1>Our boiler cover plans</h1>
<div class="plan-card"><h2>HomeCare Basic</h2>
<p>£9.99 a month with a £60 excess on every callout. Annual boiler service included, plus unlimited callouts and parts and labour for repairs up to £1,000 per claim.</p>
<ul><li>Annual boiler service</li><li>Unlimited callouts</li><li>Parts and labour included</li></ul>
</div>
<div class="plan-card"><h2>HomeCare Plus</h2>
<p>£15.50 a month with no excess. Covers your boiler, controls, central heating system and plumbing, with a free smart thermostat for the first year of cover.</p>
<ul><li>Central heating cover</li><li>Plumbing and drains</li><li>Free smart thermostat offer</li></ul>
</div>
</main>
<script>window.analyticsId="UA-1";</script>
</body></html>`

func newTestService(opts Options) *Service {
	if opts.RetryBaseWait == 0 {
		opts.RetryBaseWait = 5 * time.Millisecond
	}
	return New(nil, opts)
}

func TestFetchPreparesContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/plans", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(planPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestService(Options{})
	res, err := s.Fetch(context.Background(), srv.URL+"/plans")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Content, "£9.99")
	assert.Contains(t, res.Content, "HomeCare Plus")
	assert.Contains(t, res.Content, "Annual boiler service")
	assert.NotContains(t, res.Content, "analyticsId")
	assert.False(t, res.Rendered)
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept string
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(planPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestService(Options{})
	_, err := s.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)

	assert.NotEmpty(t, gotUA)
	assert.Contains(t, gotAccept, "text/html")
}

func TestFetchUserAgentOverride(t *testing.T) {
	var gotUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(planPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestService(Options{UserAgent: "CustomAgent/2.0"})
	_, err := s.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "CustomAgent/2.0", gotUA)
}

func TestFetchRetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(planPage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestService(Options{MaxRetries: 2})
	res, err := s.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
	assert.Contains(t, res.Content, "HomeCare Basic")
}

func TestFetchDoesNotRetryForbidden(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestService(Options{MaxRetries: 3})
	_, err := s.Fetch(context.Background(), srv.URL+"/page")
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchRespectsRobots(t *testing.T) {
	var pageHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestService(Options{})
	_, err := s.Fetch(context.Background(), srv.URL+"/page")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "robots")
	assert.Equal(t, int32(0), pageHits.Load())
}

func TestFetchHonorsContextDeadline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestService(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Fetch(ctx, srv.URL+"/slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFetchKeepsNonHTMLContent(t *testing.T) {
	body := `[{"plan":"basic","price":"£9.99"}]`
	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestService(Options{})
	res, err := s.Fetch(context.Background(), srv.URL+"/api")
	require.NoError(t, err)
	assert.Equal(t, body, res.Content)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&HTTPError{StatusCode: http.StatusTooManyRequests}))
	assert.True(t, isRetryable(&HTTPError{StatusCode: http.StatusServiceUnavailable}))
	assert.False(t, isRetryable(&HTTPError{StatusCode: http.StatusForbidden}))
	assert.False(t, isRetryable(&HTTPError{StatusCode: http.StatusNotFound}))
	assert.True(t, isRetryable(errors.New("read tcp 127.0.0.1: connection reset by peer")))
	assert.False(t, isRetryable(context.DeadlineExceeded))
	assert.False(t, isRetryable(nil))
}
