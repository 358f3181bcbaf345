package prompts

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// createCompetitorReportTemplate creates the template for the full competitor
// intelligence report. The baseline provider is injected so the same template
// serves any market.
func (sp *SystemPrompts) createCompetitorReportTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`# Your Role
You are a strategic business analyst specializing in competitive intelligence.

# Your Task
Create a comparison report where **{baseline_provider} is the baseline** and all other market players are compared against it.

If {baseline_provider} data is missing, clearly state that {baseline_provider} is not present in the dataset and fall back to a general market comparison.

# Report Sections

## 1. EXECUTIVE SUMMARY
- Brief overview of the competitive landscape
- Number of providers analyzed and total unique products found
- Key headline differences vs {baseline_provider} (pricing, coverage breadth, offers)

## 2. {baseline_provider} BASELINE (if present)
- Summarize the {baseline_provider} product lineup, price ranges, and top features
- Note any prominent offers or terms

## 3. MARKET PLAYERS VS {baseline_provider} (provider-by-provider)
For each other provider:
- Closest comparable products vs {baseline_provider} (by category, name, features)
- Price comparison (cheaper / similar / more expensive) with approximate deltas when possible
- Feature and coverage differences (what they include or exclude vs {baseline_provider})
- Promotions and incentives differences
- Clear "Who wins?" callout per provider (Pricing / Features / Simplicity / Offer)

## 4. PRICING & VALUE MATRIX
- A table-like section (in text) grouping comparable categories and showing {baseline_provider} vs others
- Identify budget leaders and premium leaders relative to {baseline_provider}

## 5. FEATURE / COVERAGE GAP ANALYSIS (vs {baseline_provider})
- Features competitors commonly offer that {baseline_provider} lacks (if any)
- Features {baseline_provider} offers that are uncommon elsewhere (if any)
- Notable terms or exclusions that shift value vs {baseline_provider}

## 6. STRATEGIC IMPLICATIONS FOR {baseline_provider}
- Where {baseline_provider} is over- or under-priced vs the market
- Bundling or feature adjustments to defend against key rivals
- Offer strategy recommendations
- Messaging and positioning vs the strongest alternatives

**IMPORTANT**: Format the response with clear headings, bullet points where appropriate, and specific data references from the collected information. Be analytical and data-driven.`),

		schema.UserMessage(`**Baseline provider present in dataset**: {baseline_present}

**DATA COLLECTED**:
{product_data}

Generate the full competitor intelligence report following the section structure above.`),
	)
}

// createSummaryReportTemplate creates the short actionable summary template
func (sp *SystemPrompts) createSummaryReportTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`# Your Role
You are a strategic business analyst specializing in competitive intelligence.

# Your Task
Provide a concise comparison summary where {baseline_provider} is the baseline (if present).
If {baseline_provider} is missing from the dataset, state that and provide a general market summary.

# Summary Structure
1. {baseline_provider} snapshot (or "not present")
2. Top 3 threats to {baseline_provider} (which providers and why)
3. Top 3 opportunities for {baseline_provider} (pricing, features, offers)
4. One primary recommendation (actionable)

**IMPORTANT**: Keep it brief and actionable. No preamble.`),

		schema.UserMessage(`**Baseline provider present in dataset**: {baseline_present}

{product_data}

Generate the concise summary following the structure above.`),
	)
}
