package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"prodintel/internal/core/intel"
	"prodintel/internal/logger"
	"prodintel/internal/platform/llm"
	"prodintel/prompts"
)

// DefaultBaseline is the provider other market players are measured against
// when the caller doesn't name one.
const DefaultBaseline = "British Gas"

const (
	reportMaxTokens  = 3000
	summaryMaxTokens = 1500
)

// Generator is the slice of the llm service the analyzer needs.
type Generator interface {
	GenerateBounded(ctx context.Context, messages []*schema.Message, maxOutputTokens int32) (string, *llm.TokenUsage, error)
}

// Service turns extracted products into comparative market reports. It is not
// part of the batch pipeline; callers invoke it on demand with whatever
// products a run (or several runs) produced.
type Service struct {
	llm     Generator
	prompts *prompts.SystemPrompts
	log     *logger.Logger
}

func New(gen Generator) *Service {
	return &Service{
		llm:     gen,
		prompts: prompts.NewSystemPrompts(),
		log:     logger.New("Analyze"),
	}
}

// ReportResult carries the generated markdown plus the accounting a caller
// needs to judge it: how much was deduped, whether the baseline was present,
// and what the model call cost.
type ReportResult struct {
	Report          string            `json:"report"`
	Baseline        string            `json:"baseline"`
	BaselinePresent bool              `json:"baseline_present"`
	ProviderCount   int               `json:"provider_count"`
	ProductCount    int               `json:"product_count"`
	Dedupe          intel.DedupeStats `json:"dedupe"`
	Usage           *llm.TokenUsage   `json:"usage,omitempty"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// Report generates the full provider-by-provider comparison against the
// baseline provider. The reply is capped at 3000 output tokens.
func (s *Service) Report(ctx context.Context, products []intel.Product, baseline string) (*ReportResult, error) {
	return s.generate(ctx, products, baseline, s.prompts.CompetitorReport, reportMaxTokens)
}

// ExecSummary generates the short actionable summary, capped at 1500 tokens.
func (s *Service) ExecSummary(ctx context.Context, products []intel.Product, baseline string) (*ReportResult, error) {
	return s.generate(ctx, products, baseline, s.prompts.SummaryReport, summaryMaxTokens)
}

func (s *Service) generate(ctx context.Context, products []intel.Product, baseline string, tpl prompt.ChatTemplate, maxTokens int32) (*ReportResult, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("no products to analyze")
	}
	if baseline == "" {
		baseline = DefaultBaseline
	}

	deduped, stats := intel.Dedupe(products)
	providers := intel.GroupProviders(deduped, baseline)
	_, present := intel.Baseline(providers)

	data, err := json.MarshalIndent(providers, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider profiles: %w", err)
	}

	messages, err := tpl.Format(ctx, map[string]any{
		"baseline_provider": baseline,
		"baseline_present":  strconv.FormatBool(present),
		"product_data":      string(data),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to format analysis prompt: %w", err)
	}

	s.log.LogInfof("Generating analysis for %d providers (%d products, baseline %q present: %v)",
		len(providers), len(deduped), baseline, present)

	text, usage, err := s.llm.GenerateBounded(ctx, messages, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("analysis generation failed: %w", err)
	}

	result := &ReportResult{
		Report:          text,
		Baseline:        baseline,
		BaselinePresent: present,
		ProviderCount:   len(providers),
		ProductCount:    len(deduped),
		Dedupe:          stats,
		Usage:           usage,
		GeneratedAt:     time.Now().UTC(),
	}
	if usage != nil {
		s.log.LogSuccessf("Analysis generated (%d chars, %d output tokens)", len(text), usage.OutputTokens)
	} else {
		s.log.LogSuccessf("Analysis generated (%d chars)", len(text))
	}
	return result, nil
}
