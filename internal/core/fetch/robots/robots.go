package robots

import (
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	cacheFor  = 30 * time.Minute
	fetchTime = 10 * time.Second
	maxBody   = 512 << 10
)

// Service fetches and caches robots.txt rules per origin. Lookups fail open:
// a missing or unreachable robots.txt allows the fetch.
type Service struct {
	mu      sync.Mutex
	client  *http.Client
	entries map[string]entry
}

type entry struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

func New() *Service {
	return &Service{
		client:  &http.Client{Timeout: fetchTime},
		entries: make(map[string]entry),
	}
}

// IsAllowed reports whether the agent may fetch the URL under the origin's
// robots.txt rules.
func (s *Service) IsAllowed(rawURL, agent string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	data := s.rulesFor(u.Scheme + "://" + u.Host)
	if data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, agent)
}

func (s *Service) rulesFor(origin string) *robotstxt.RobotsData {
	s.mu.Lock()
	if e, ok := s.entries[origin]; ok && time.Now().Before(e.expires) {
		s.mu.Unlock()
		return e.data
	}
	s.mu.Unlock()

	data := s.fetch(origin)

	// Failures are cached too so a dead origin is not re-polled per URL
	s.mu.Lock()
	s.entries[origin] = entry{data: data, expires: time.Now().Add(cacheFor)}
	s.mu.Unlock()
	return data
}

func (s *Service) fetch(origin string) *robotstxt.RobotsData {
	resp, err := s.client.Get(origin + "/robots.txt")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}
