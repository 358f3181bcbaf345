package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"prodintel/internal/core/batch"
	"prodintel/internal/core/export"
	"prodintel/internal/core/intel"
	"prodintel/internal/utils/parser"
)

// HandleCreateBatch validates the URL set, enqueues the extraction job and
// answers 202 with the job id. Per-item failures never surface here; only a
// configuration the run cannot start with is rejected.
func (s *Server) HandleCreateBatch(c *fiber.Ctx) error {
	var req BatchCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	entries, err := collectEntries(req)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	entries = batch.Dedupe(entries)
	if len(entries) == 0 {
		return fail(c, fiber.StatusBadRequest, "no urls provided")
	}
	if len(entries) > s.cfg.MaxURLsPerBatch {
		return fail(c, fiber.StatusBadRequest,
			fmt.Sprintf("too many urls: %d exceeds the limit of %d", len(entries), s.cfg.MaxURLsPerBatch))
	}

	schema, err := s.resolveSchema(req.Schema)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	jobID, err := s.batch.Enqueue(c.Context(), entries, schema, req.Options)
	if err != nil {
		var cfgErr *batch.ConfigError
		if errors.As(err, &cfgErr) {
			return fail(c, fiber.StatusBadRequest, cfgErr.Error())
		}
		s.log.LogErrorf("batch enqueue failed: %v", err)
		return fail(c, fiber.StatusInternalServerError, "failed to enqueue batch")
	}

	return c.Status(fiber.StatusAccepted).JSON(BatchCreateResponse{
		Success:   true,
		JobID:     jobID,
		URLCount:  len(entries),
		StatusURL: "/v1/batches/" + jobID,
	})
}

// collectEntries merges the four input shapes into one ordered entry list.
// Relative order within each shape is preserved; shapes append in declaration
// order so callers get deterministic indexes.
func collectEntries(req BatchCreateRequest) ([]batch.UrlEntry, error) {
	entries := append([]batch.UrlEntry(nil), req.Entries...)
	for _, u := range req.URLs {
		entries = append(entries, batch.UrlEntry{Raw: u})
	}
	if req.Text != "" {
		entries = append(entries, batch.ParseURLText(req.Text)...)
	}
	if req.CSVBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(req.CSVBase64)
		if err != nil {
			return nil, fmt.Errorf("csv_base64 is not valid base64: %w", err)
		}
		fromCSV, err := batch.ParseURLCSV(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		entries = append(entries, fromCSV...)
	}
	return entries, nil
}

// HandleGetBatch reports job status and, once the job is terminal, the stored
// outcomes. Cancelled jobs keep their partial outcomes.
func (s *Server) HandleGetBatch(c *fiber.Ctx) error {
	id := c.Params("jobId")
	j, err := s.jobs.GetJobStatus(c.Context(), id)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "not_found")
	}
	resp := BatchStatusResponse{
		Success:  true,
		JobID:    id,
		Status:   string(j.Status),
		Progress: j.Progress,
		Error:    j.Error,
	}
	if j.Status.Terminal() && j.Results.Batch != nil {
		resp.Data = j.Results.Batch
	}
	return c.JSON(resp)
}

// HandleCancelBatch requests cooperative cancellation. The worker notices the
// flag between item dispatches, so completed items survive.
func (s *Server) HandleCancelBatch(c *fiber.Ctx) error {
	id := c.Params("jobId")
	j, err := s.jobs.GetJobStatus(c.Context(), id)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "not_found")
	}
	if j.Status.Terminal() {
		return fail(c, fiber.StatusConflict, "job already "+string(j.Status))
	}
	if err := s.jobs.RequestCancel(c.Context(), id); err != nil {
		s.log.LogErrorf("cancel request failed for %s: %v", id, err)
		return fail(c, fiber.StatusInternalServerError, "failed to request cancellation")
	}
	return c.Status(fiber.StatusAccepted).JSON(BatchCancelResponse{
		Success: true,
		JobID:   id,
		Status:  "cancelling",
	})
}

// HandleExportBatch renders a finished job as CSV. table=outcomes gives one
// row per input URL including failures; table=products gives the cleaned,
// deduplicated product list. download=true streams the file inline instead
// of persisting it to the artifact store.
func (s *Server) HandleExportBatch(c *fiber.Ctx) error {
	var p ExportParams
	if err := parser.ParseQuery(c, &p); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid query")
	}
	if p.Table == "" {
		p.Table = "products"
	}

	id := c.Params("jobId")
	j, err := s.jobs.GetJobStatus(c.Context(), id)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "not_found")
	}
	if !j.Status.Terminal() || j.Results.Batch == nil {
		return fail(c, fiber.StatusConflict, "job has no results yet")
	}
	data := j.Results.Batch

	var buf bytes.Buffer
	var rows int
	switch p.Table {
	case "products":
		products, _ := intel.Dedupe(intel.Clean(data.Outcomes))
		if err := export.WriteProducts(&buf, products); err != nil {
			return fail(c, fiber.StatusInternalServerError, err.Error())
		}
		rows = len(products)
	case "outcomes":
		if err := export.WriteOutcomes(&buf, data.Outcomes, data.Schema); err != nil {
			return fail(c, fiber.StatusInternalServerError, err.Error())
		}
		rows = len(data.Outcomes)
	default:
		return fail(c, fiber.StatusBadRequest, "table must be products or outcomes")
	}

	name := fmt.Sprintf("%s_%s.csv", p.Table, id)
	if p.Download {
		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
		return c.Send(buf.Bytes())
	}

	path, url, err := s.exports.Save(buf.Bytes(), name)
	if err != nil {
		s.log.LogErrorf("export save failed for %s: %v", id, err)
		return fail(c, fiber.StatusInternalServerError, "failed to persist export")
	}
	return c.JSON(ExportResponse{
		Success: true,
		JobID:   id,
		Table:   p.Table,
		Rows:    rows,
		URL:     url,
		Path:    path,
	})
}
