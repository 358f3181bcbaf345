package server

import (
	"github.com/gofiber/fiber/v2"

	"prodintel/internal/core/discover"
	"prodintel/internal/utils/parser"
)

// HandleDiscover maps a provider site and returns candidate product page
// URLs, ready to paste into a batch request.
func (s *Server) HandleDiscover(c *fiber.Ctx) error {
	var p DiscoverParams
	if err := parser.ParseQuery(c, &p); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid query")
	}
	if p.URL == "" {
		return fail(c, fiber.StatusBadRequest, "url is required")
	}

	keywords := p.Keywords
	if p.ProductsOnly && len(keywords) == 0 {
		keywords = discover.ProductKeywords
	}

	links, err := s.discover.MapSite(c.Context(), discover.Request{
		URL:               p.URL,
		Depth:             p.Depth,
		Limit:             p.Limit,
		IncludeSubdomains: p.Subdomains,
		Keywords:          keywords,
	})
	if err != nil {
		s.log.LogWarnf("discover failed for %s: %v", p.URL, err)
		return fail(c, errorStatus(err), err.Error())
	}

	return c.JSON(DiscoverResponse{
		Success:    true,
		URL:        p.URL,
		Discovered: len(links),
		Links:      links,
	})
}
