package prompts

import (
	"strings"

	"github.com/cloudwego/eino/components/prompt"
)

// SystemPrompts contains all the prompt templates organized by use case
type SystemPrompts struct {
	// Extraction templates
	ProductExtraction prompt.ChatTemplate
	GenericExtraction prompt.ChatTemplate

	// Intelligence report templates
	CompetitorReport prompt.ChatTemplate
	SummaryReport    prompt.ChatTemplate
}

// NewSystemPrompts creates and initializes all prompt templates
func NewSystemPrompts() *SystemPrompts {
	sp := &SystemPrompts{}
	sp.initializePrompts()
	return sp
}

// initializePrompts sets up all the prompt templates
func (sp *SystemPrompts) initializePrompts() {
	// Initialize extraction templates
	sp.ProductExtraction = sp.createProductExtractionTemplate()
	sp.GenericExtraction = sp.createGenericExtractionTemplate()

	// Initialize report templates
	sp.CompetitorReport = sp.createCompetitorReportTemplate()
	sp.SummaryReport = sp.createSummaryReportTemplate()
}

// GetExtractionTemplate returns the template matching the schema being
// extracted. Product-style schemas get the pricing-aware template, everything
// else the generic schema-driven one.
func (sp *SystemPrompts) GetExtractionTemplate(schemaName string) prompt.ChatTemplate {
	name := strings.ToLower(schemaName)
	for _, marker := range []string{"product", "offer", "plan", "pricing"} {
		if strings.Contains(name, marker) {
			return sp.ProductExtraction
		}
	}
	return sp.GenericExtraction
}

// GetAvailableTemplates returns a map of all available templates with descriptions
func (sp *SystemPrompts) GetAvailableTemplates() map[string]string {
	return map[string]string{
		"product_extraction": "Extract product/service offerings with pricing as a JSON array",
		"generic_extraction": "Extract arbitrary schema-driven records as a JSON array",
		"competitor_report":  "Full competitor intelligence report against a baseline provider",
		"summary_report":     "Short actionable summary against a baseline provider",
	}
}
