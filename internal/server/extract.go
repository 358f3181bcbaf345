package server

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"prodintel/internal/core/batch"
)

// HandleExtract runs fetch and extraction for a single URL inline, without a
// job. It is the interactive preview path; batch runs go through /batches.
func (s *Server) HandleExtract(c *fiber.Ctx) error {
	var req ExtractRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if req.URL == "" {
		return fail(c, fiber.StatusBadRequest, "url is required")
	}
	if err := batch.ValidateURL(req.URL); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	schema, err := s.resolveSchema(req.Schema)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	fetchCtx, cancel := context.WithTimeout(c.Context(), s.cfg.FetchTimeout)
	defer cancel()
	page, err := s.fetch.Fetch(fetchCtx, req.URL)
	if err != nil {
		s.log.LogWarnf("extract fetch failed for %s: %v", req.URL, err)
		return fail(c, errorStatus(err), err.Error())
	}

	extractCtx, cancel := context.WithTimeout(c.Context(), s.cfg.ExtractTimeout)
	defer cancel()
	records, err := s.extract.Extract(extractCtx, page, schema)
	if err != nil {
		s.log.LogWarnf("extraction failed for %s: %v", req.URL, err)
		return fail(c, errorStatus(err), err.Error())
	}

	return c.JSON(ExtractResponse{
		Success:  true,
		URL:      req.URL,
		Rendered: page.Rendered,
		Records:  records,
	})
}

// resolveSchema validates a caller-supplied schema or falls back to the
// configured default.
func (s *Server) resolveSchema(supplied *batch.ExtractionSchema) (batch.ExtractionSchema, error) {
	if supplied == nil {
		return s.defaultSchema, nil
	}
	if err := supplied.Validate(); err != nil {
		return batch.ExtractionSchema{}, err
	}
	return *supplied, nil
}
