package discover

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly"

	"prodintel/internal/core/fetch/robots"
	"prodintel/internal/logger"
)

const botAgent = "ProdIntelBot"

const (
	defaultDepth = 2
	defaultLimit = 30
)

// ProductKeywords biases discovery toward the pages that usually carry plans
// and prices. Callers pass it as Request.Keywords when they want product pages
// rather than the whole site.
var ProductKeywords = []string{"product", "plan", "cover", "price", "pricing", "offer", "care", "insurance"}

// Request bounds one discovery crawl.
type Request struct {
	URL               string
	Depth             int // crawl depth, default 2
	Limit             int // max links collected, default 30
	IncludeSubdomains bool
	Keywords          []string // keep only URLs containing one of these; empty keeps all
}

// Service crawls a competitor site and returns candidate page URLs to feed a
// batch: same domain only, normalized, deduped and capped.
type Service struct {
	log    *logger.Logger
	robots *robots.Service
}

func New() *Service {
	return &Service{log: logger.New("Discover"), robots: robots.New()}
}

// MapSite runs the crawl. Results are sorted so repeated runs against an
// unchanged site produce the same batch input.
func (s *Service) MapSite(ctx context.Context, req Request) ([]string, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("discovery needs a start url")
	}
	depth := req.Depth
	if depth <= 0 {
		depth = defaultDepth
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	start := cleanURL(req.URL)
	dom := hostOf(start)
	if dom == "" {
		return nil, fmt.Errorf("cannot determine host of %s", req.URL)
	}

	links := make(map[string]struct{})
	var mu sync.Mutex

	c := colly.NewCollector(colly.MaxDepth(depth), colly.Async(true))

	c.OnRequest(func(r *colly.Request) {
		mu.Lock()
		reached := len(links) >= limit
		mu.Unlock()
		if reached {
			r.Abort()
			return
		}
		select {
		case <-ctx.Done():
			r.Abort()
			return
		default:
		}
		if !s.robots.IsAllowed(r.URL.String(), botAgent) {
			s.log.LogDebugf("Discover skip (robots) %s", r.URL)
			r.Abort()
		}
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := normalize(e.Request.AbsoluteURL(e.Attr("href")))
		if link == "" {
			return
		}
		if !domainsMatch(hostOf(link), dom, req.IncludeSubdomains) {
			return
		}
		if !matchesKeywords(link, req.Keywords) {
			return
		}
		if !s.robots.IsAllowed(link, botAgent) {
			return
		}

		mu.Lock()
		_, exists := links[link]
		if !exists && len(links) < limit {
			links[link] = struct{}{}
		}
		reached := len(links) >= limit
		mu.Unlock()

		if exists || reached {
			return
		}
		if e.Request.Depth < depth {
			_ = e.Request.Visit(link)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		s.log.LogWarnf("Discover error %s %d: %v", r.Request.URL, r.StatusCode, err)
	})

	c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 4, RandomDelay: 500 * time.Millisecond})

	if err := c.Visit(start); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", start, err)
	}
	c.Wait()

	out := make([]string, 0, len(links))
	for l := range links {
		out = append(out, l)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	s.log.LogSuccessf("Discover done url=%s found=%d", req.URL, len(out))
	return out, nil
}

func cleanURL(u string) string {
	if !strings.HasPrefix(u, "http") {
		u = "https://" + u
	}
	return u
}

func hostOf(u string) string {
	p, _ := url.Parse(u)
	if p != nil {
		return p.Hostname()
	}
	return ""
}

func normalize(u string) string {
	p, _ := url.Parse(u)
	if p == nil {
		return u
	}
	p.Fragment = ""
	if p.Path == "/" {
		p.Path = ""
	}
	return p.String()
}

func domainsMatch(a, b string, includeSub bool) bool {
	if a == b {
		return true
	}
	a = strings.TrimPrefix(a, "www.")
	b = strings.TrimPrefix(b, "www.")
	if a == b {
		return true
	}
	if includeSub && (strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)) {
		return true
	}
	return false
}

// matchesKeywords keeps a URL when its path or query mentions any keyword.
func matchesKeywords(u string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	p, err := url.Parse(u)
	if err != nil {
		return false
	}
	target := strings.ToLower(p.Path + "?" + p.RawQuery)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(target, kw) {
			return true
		}
	}
	return false
}
