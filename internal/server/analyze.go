package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"prodintel/internal/core/analyze"
	"prodintel/internal/core/intel"
)

// HandleAnalyze turns extracted products into a competitive analysis report.
// Products come inline, from a finished batch job, or both.
func (s *Server) HandleAnalyze(c *fiber.Ctx) error {
	var req AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	products := append([]intel.Product(nil), req.Products...)
	if req.JobID != "" {
		j, err := s.jobs.GetJobStatus(c.Context(), req.JobID)
		if err != nil {
			return fail(c, fiber.StatusNotFound, "job not found")
		}
		if j.Results.Batch == nil {
			return fail(c, fiber.StatusConflict, "job has no results to analyze")
		}
		products = append(products, intel.Clean(j.Results.Batch.Outcomes)...)
	}
	if len(products) == 0 {
		return fail(c, fiber.StatusBadRequest, "no products to analyze")
	}

	baseline := req.Baseline
	if baseline == "" {
		baseline = s.cfg.BaselineProvider
	}

	var (
		result *analyze.ReportResult
		err    error
	)
	if req.Summary {
		result, err = s.analyze.ExecSummary(c.Context(), products, baseline)
	} else {
		result, err = s.analyze.Report(c.Context(), products, baseline)
	}
	if err != nil {
		if strings.Contains(err.Error(), "no products") {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		s.log.LogErrorf("analysis failed: %v", err)
		return fail(c, errorStatus(err), err.Error())
	}

	return c.JSON(AnalyzeResponse{Success: true, Result: result})
}
