package prompts

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// Following prompt design principles:
// 1. Clear role definition for the model
// 2. Explicit output contract (always a JSON array)
// 3. Schema injected as a variable so one template serves any field set
// 4. No invented values - missing data is omitted, not guessed

// createProductExtractionTemplate creates the template for extracting product
// and pricing offerings from a provider page
func (sp *SystemPrompts) createProductExtractionTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`# Your Role
You are an expert product and pricing data extraction specialist.

# Your Task
Analyze page content from a provider website and extract ALL product/service offerings it advertises.

# Extraction Rules
1. **Every Offering**: Extract one object per distinct product, plan or tier found on the page
2. **Schema Fields**: Each object must use exactly the field names defined in the schema below
3. **Verbatim Prices**: Copy prices with their currency symbol as printed (e.g. "£15.50", "$29.99")
4. **Missing Data**: Omit a field entirely when the page does not state it - never invent values
5. **List Fields**: Fields marked as lists must be JSON arrays of short strings
6. **Product Boundaries**: Carefully distinguish between separate plans and tiers of the same product

# Schema (per product)
{field_spec}

# Output Format
Return a JSON array where each element is one product object:
[
  {{"product_name": "...", "price_monthly": "£15.50", ...}},
  {{"product_name": "...", "price_monthly": "£22.00", ...}}
]

If the page advertises no products, return an empty array: []

**IMPORTANT**: Return ONLY the JSON array. No explanations, no markdown fences, no wrapper objects.`),

		schema.UserMessage(`**Source URL**: {source_url}

**Page Content**:
{content}

Extract ALL product offerings as a JSON array following the schema.`),
	)
}

// createGenericExtractionTemplate creates a schema-driven template for pages
// that are not product listings
func (sp *SystemPrompts) createGenericExtractionTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`# Your Role
You are an expert structured data extraction specialist.

# Your Task
Extract every record matching the requested schema from the provided page content.

# Extraction Rules
1. **Complete Coverage**: Extract ALL records present, not just the first one
2. **Schema Fields**: Each record must use exactly the field names defined in the schema below
3. **Missing Data**: Omit a field entirely when the content does not provide it - never invent values
4. **List Fields**: Fields marked as lists must be JSON arrays of short strings
5. **Data Quality**: Skip fragments that lack enough information to form a meaningful record

# Schema (per record)
{field_spec}

# Output Format
Return a JSON array of record objects. If nothing matches, return an empty array: []

**IMPORTANT**: Return ONLY the JSON array. No explanations, no markdown fences, no wrapper objects.`),

		schema.UserMessage(`**Source URL**: {source_url}

**Page Content**:
{content}

Extract ALL matching records as a JSON array following the schema.`),
	)
}
