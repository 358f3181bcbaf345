package server

import (
	"prodintel/internal/core/analyze"
	"prodintel/internal/core/batch"
	"prodintel/internal/core/intel"
	"prodintel/internal/core/job"
	"prodintel/internal/worker"
)

// APIError is the uniform failure envelope.
type APIError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ExtractRequest asks for a synchronous fetch-and-extract of one URL.
type ExtractRequest struct {
	URL    string                  `json:"url"`
	Label  string                  `json:"label,omitempty"`
	Schema *batch.ExtractionSchema `json:"schema,omitempty"`
}

type ExtractResponse struct {
	Success  bool                    `json:"success"`
	URL      string                  `json:"url"`
	Rendered bool                    `json:"rendered,omitempty"`
	Records  []batch.ExtractedRecord `json:"records"`
}

// BatchCreateRequest accepts URLs in any mix of four shapes: structured
// entries, a bare URL list, newline-separated text, or a base64 CSV upload.
type BatchCreateRequest struct {
	Entries   []batch.UrlEntry        `json:"entries,omitempty"`
	URLs      []string                `json:"urls,omitempty"`
	Text      string                  `json:"text,omitempty"`
	CSVBase64 string                  `json:"csv_base64,omitempty"`
	Schema    *batch.ExtractionSchema `json:"schema,omitempty"`
	Options   worker.BatchOptions     `json:"options,omitempty"`
}

type BatchCreateResponse struct {
	Success   bool   `json:"success"`
	JobID     string `json:"job_id"`
	URLCount  int    `json:"url_count"`
	StatusURL string `json:"status_url"`
}

type BatchStatusResponse struct {
	Success  bool              `json:"success"`
	JobID    string            `json:"job_id"`
	Status   string            `json:"status"`
	Progress *job.ProgressInfo `json:"progress,omitempty"`
	Error    string            `json:"error,omitempty"`
	Data     *job.BatchJobData `json:"data,omitempty"`
}

type BatchCancelResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
}

// ExportParams selects which table of a finished job to export.
type ExportParams struct {
	Table    string `form:"table"`
	Download bool   `form:"download"`
}

type ExportResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Table   string `json:"table"`
	Rows    int    `json:"rows"`
	URL     string `json:"url"`
	Path    string `json:"path,omitempty"`
}

// DiscoverParams map directly onto discover.Request; products_only switches
// on the built-in product keyword filter when no explicit keywords are given.
type DiscoverParams struct {
	URL          string   `form:"url"`
	Depth        int      `form:"depth"`
	Limit        int      `form:"limit"`
	Subdomains   bool     `form:"subdomains"`
	Keywords     []string `form:"keywords"`
	ProductsOnly bool     `form:"products_only"`
}

type DiscoverResponse struct {
	Success    bool     `json:"success"`
	URL        string   `json:"url"`
	Discovered int      `json:"discovered"`
	Links      []string `json:"links"`
}

// AnalyzeRequest feeds products into report generation, either inline or by
// referencing a finished batch job. Both sources may be combined.
type AnalyzeRequest struct {
	JobID    string          `json:"job_id,omitempty"`
	Products []intel.Product `json:"products,omitempty"`
	Baseline string          `json:"baseline,omitempty"`
	Summary  bool            `json:"summary,omitempty"`
}

type AnalyzeResponse struct {
	Success bool                  `json:"success"`
	Result  *analyze.ReportResult `json:"result"`
}
