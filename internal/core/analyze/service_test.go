package analyze

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodintel/internal/core/intel"
	"prodintel/internal/platform/llm"
)

type stubGenerator struct {
	mu    sync.Mutex
	reply string
	err   error

	gotMessages []*schema.Message
	gotMax      int32
}

func (g *stubGenerator) GenerateBounded(_ context.Context, messages []*schema.Message, maxOutputTokens int32) (string, *llm.TokenUsage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gotMessages = messages
	g.gotMax = maxOutputTokens
	if g.err != nil {
		return "", nil, g.err
	}
	return g.reply, &llm.TokenUsage{InputTokens: 120, OutputTokens: 80, TotalTokens: 200}, nil
}

func (g *stubGenerator) promptText() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var sb strings.Builder
	for _, m := range g.gotMessages {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func sampleProducts() []intel.Product {
	return []intel.Product{
		{
			Competitor:   "British Gas",
			Domain:       "www.britishgas.co.uk",
			Name:         "HomeCare Two",
			Category:     "boiler cover",
			PriceMonthly: "£15.50",
			Features:     []string{"Annual boiler service"},
			SourceURLs:   []string{"https://www.britishgas.co.uk/home-cover"},
		},
		{
			Competitor:   "Corgi HomePlan",
			Domain:       "www.corgihomeplan.co.uk",
			Name:         "Corgi Complete",
			Category:     "home cover",
			PriceMonthly: "£21",
			SourceURLs:   []string{"https://www.corgihomeplan.co.uk/plans"},
		},
	}
}

func TestReportRendersBaselineIntoPrompt(t *testing.T) {
	gen := &stubGenerator{reply: "## EXECUTIVE SUMMARY\nMarket is competitive."}
	svc := New(gen)

	result, err := svc.Report(context.Background(), sampleProducts(), "")
	require.NoError(t, err)

	assert.Equal(t, "## EXECUTIVE SUMMARY\nMarket is competitive.", result.Report)
	assert.Equal(t, DefaultBaseline, result.Baseline)
	assert.True(t, result.BaselinePresent)
	assert.Equal(t, 2, result.ProviderCount)
	assert.Equal(t, 2, result.ProductCount)
	assert.Equal(t, int32(3000), gen.gotMax)
	require.NotNil(t, result.Usage)
	assert.Equal(t, int32(80), result.Usage.OutputTokens)

	prompt := gen.promptText()
	assert.Contains(t, prompt, "British Gas is the baseline")
	assert.Contains(t, prompt, "HomeCare Two")
	assert.Contains(t, prompt, "Corgi Complete")
	assert.Contains(t, prompt, "Baseline provider present in dataset**: true")
}

func TestReportMissingBaselineIsFlagged(t *testing.T) {
	gen := &stubGenerator{reply: "report"}
	svc := New(gen)

	products := sampleProducts()[1:] // Corgi only
	result, err := svc.Report(context.Background(), products, "British Gas")
	require.NoError(t, err)

	assert.False(t, result.BaselinePresent)
	assert.Contains(t, gen.promptText(), "Baseline provider present in dataset**: false")
}

func TestExecSummaryUsesSmallerTokenCap(t *testing.T) {
	gen := &stubGenerator{reply: "summary"}
	svc := New(gen)

	result, err := svc.ExecSummary(context.Background(), sampleProducts(), "British Gas")
	require.NoError(t, err)

	assert.Equal(t, "summary", result.Report)
	assert.Equal(t, int32(1500), gen.gotMax)
	assert.Contains(t, gen.promptText(), "Top 3 threats")
}

func TestReportDedupesBeforeAnalysis(t *testing.T) {
	gen := &stubGenerator{reply: "report"}
	svc := New(gen)

	products := sampleProducts()
	dup := products[0]
	dup.SourceURLs = []string{"https://www.britishgas.co.uk/offers"}
	products = append(products, dup)

	result, err := svc.Report(context.Background(), products, "British Gas")
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProductCount)
	assert.Equal(t, 1, result.Dedupe.DuplicatesRemoved)
}

func TestReportNoProducts(t *testing.T) {
	svc := New(&stubGenerator{})
	_, err := svc.Report(context.Background(), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no products")
}

func TestReportGenerationFailure(t *testing.T) {
	gen := &stubGenerator{err: fmt.Errorf("model overloaded")}
	svc := New(gen)

	_, err := svc.Report(context.Background(), sampleProducts(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}
