package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prodintel/internal/core/batch"
	"prodintel/internal/core/fetch/robots"
	"prodintel/internal/logger"
	rds "prodintel/internal/platform/redis"

	"github.com/cenkalti/backoff/v4"
)

const botAgent = "ProdIntelBot"

// Options tune the fetch pipeline.
type Options struct {
	MaxRetries     int           // retries after the first attempt, only for transient failures
	CacheTTL       time.Duration // prepared-content cache lifetime, zero disables caching
	RenderFallback bool          // render JavaScript shells with a headless browser
	UserAgent      string        // overrides the strategy profile agent when set
	MaxBodyBytes   int64
	RetryBaseWait  time.Duration
}

// Service fetches provider pages and prepares their content for extraction.
// It implements batch.Fetcher.
type Service struct {
	log     *logger.Logger
	redis   *rds.Service
	robots  *robots.Service
	client  *http.Client
	browser *Browser
	opts    Options
}

func New(redis *rds.Service, opts Options) *Service {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 << 20
	}
	if opts.RetryBaseWait <= 0 {
		opts.RetryBaseWait = 500 * time.Millisecond
	}

	log := logger.New("FetchService")
	s := &Service{
		log:    log,
		redis:  redis,
		robots: robots.New(),
		// Deadlines come from the caller's context, not a client-wide timeout
		client: &http.Client{},
		opts:   opts,
	}
	if opts.RenderFallback {
		s.browser = NewBrowser(log)
	}
	return s
}

// Fetch retrieves one URL and returns its content condensed for the model.
func (s *Service) Fetch(ctx context.Context, rawURL string) (*batch.FetchResult, error) {
	if cached := s.getCached(ctx, rawURL); cached != nil {
		s.log.Info().Str("url", rawURL).Msg("cache hit")
		return cached, nil
	}

	if !s.robots.IsAllowed(rawURL, botAgent) {
		s.log.Info().Str("url", rawURL).Msg("robots disallow")
		return nil, fmt.Errorf("disallowed by robots.txt")
	}

	res, err := s.fetchWithRetries(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if s.browser != nil && LooksLikeAppShell(res.Content) {
		s.log.Info().Str("url", rawURL).Msg("app shell detected, rendering")
		rendered, rerr := s.browser.Render(ctx, rawURL, StrategyModernBrowser)
		if rerr != nil {
			s.log.LogWarnf("render fallback failed for %s: %v", rawURL, rerr)
		} else if len(rendered) > len(res.Content) {
			res.Content = rendered
			res.Rendered = true
		}
	}

	res.Content = PrepareForExtraction(res.Content, res.ContentType)
	if strings.TrimSpace(res.Content) == "" {
		return nil, fmt.Errorf("no usable content at %s", rawURL)
	}

	s.cache(ctx, rawURL, res)
	s.log.Info().Str("url", rawURL).Int("status", res.StatusCode).Int("chars", len(res.Content)).Msg("fetch complete")
	return res, nil
}

// fetchWithRetries rotates header strategies across attempts and backs off
// between transient failures. Permanent failures stop the loop immediately.
func (s *Service) fetchWithRetries(ctx context.Context, rawURL string) (*batch.FetchResult, error) {
	strategies := GetAllStrategies()
	attempt := 0

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.opts.RetryBaseWait
	expo.MaxInterval = 8 * time.Second
	expo.MaxElapsedTime = 0 // the context owns the overall deadline
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(s.opts.MaxRetries)), ctx)

	var result *batch.FetchResult
	operation := func() error {
		strategy := strategies[attempt%len(strategies)]
		attempt++

		res, err := s.fetchOnce(ctx, rawURL, strategy)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			s.log.Info().Str("url", rawURL).Int("attempt", attempt).Str("strategy", string(strategy)).Str("error", err.Error()).Msg("fetch attempt failed")
			return err
		}
		result = res
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) fetchOnce(ctx context.Context, rawURL string, strategy HeaderStrategy) (*batch.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	applyProfile(req, GetHeaderProfile(strategy), s.opts.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: rawURL}
	}

	return &batch.FetchResult{
		URL:         rawURL,
		Content:     string(body),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

// applyProfile sets the profile headers on the request. Accept-Encoding is
// left to the transport so gzip decoding stays automatic.
func applyProfile(req *http.Request, profile HeaderProfile, uaOverride string) {
	ua := profile.UserAgent
	if uaOverride != "" {
		ua = uaOverride
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", profile.Accept)
	req.Header.Set("Accept-Language", profile.AcceptLanguage)
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	if profile.SecFetchDest != "" {
		req.Header.Set("Sec-Fetch-Dest", profile.SecFetchDest)
		req.Header.Set("Sec-Fetch-Mode", profile.SecFetchMode)
		req.Header.Set("Sec-Fetch-Site", profile.SecFetchSite)
		if profile.SecFetchUser != "" {
			req.Header.Set("Sec-Fetch-User", profile.SecFetchUser)
		}
	}
	if profile.SecChUa != "" {
		req.Header.Set("Sec-Ch-Ua", profile.SecChUa)
		req.Header.Set("Sec-Ch-Ua-Mobile", profile.SecChUaMobile)
		req.Header.Set("Sec-Ch-Ua-Platform", profile.SecChUaPlatform)
	}
}

// HTTPError reports a non-success response status.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	if e.StatusCode == http.StatusForbidden {
		return fmt.Sprintf("403 Forbidden for %s: the site may block requests from data-center IPs", e.URL)
	}
	return fmt.Sprintf("unexpected status %s for %s", e.Status, e.URL)
}

// isRetryable classifies fetch failures. Rate limits and upstream hiccups are
// worth another attempt, 4xx verdicts and dead contexts are not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	es := strings.ToLower(err.Error())
	return strings.Contains(es, "connection reset") ||
		strings.Contains(es, "connection refused") ||
		strings.Contains(es, "timeout") ||
		strings.Contains(es, "eof")
}

// Cache helpers

func (s *Service) getCached(ctx context.Context, rawURL string) *batch.FetchResult {
	if s.redis == nil || s.opts.CacheTTL <= 0 {
		return nil
	}
	var res batch.FetchResult
	if err := s.redis.CacheGet(ctx, cacheKey(rawURL), &res); err != nil {
		return nil
	}
	return &res
}

func (s *Service) cache(ctx context.Context, rawURL string, res *batch.FetchResult) {
	if s.redis == nil || s.opts.CacheTTL <= 0 {
		return
	}
	_ = s.redis.CacheSet(ctx, cacheKey(rawURL), res, s.opts.CacheTTL)
}

func cacheKey(rawURL string) string {
	safeURL := strings.ReplaceAll(rawURL, ":", "_")
	safeURL = strings.ReplaceAll(safeURL, "/", "_")
	safeURL = strings.ReplaceAll(safeURL, "?", "_")
	safeURL = strings.ReplaceAll(safeURL, "&", "_")
	return "fetch:" + safeURL
}
