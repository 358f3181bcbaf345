package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"prodintel/internal/core/batch"
	"prodintel/internal/logger"
	"prodintel/internal/platform/llm"
	"prodintel/prompts"
)

// Service turns fetched page content into schema-shaped records with the
// model. It implements batch.Extractor.
type Service struct {
	llm     *llm.Service
	prompts *prompts.SystemPrompts
	log     *logger.Logger
}

func New(llmService *llm.Service) *Service {
	return &Service{
		llm:     llmService,
		prompts: prompts.NewSystemPrompts(),
		log:     logger.New("ExtractService"),
	}
}

// Extract prompts the model with the prepared content and parses its reply
// into records. The reply must be a JSON array; anything else is an error.
func (s *Service) Extract(ctx context.Context, page *batch.FetchResult, schema batch.ExtractionSchema) ([]batch.ExtractedRecord, error) {
	tpl := s.prompts.GetExtractionTemplate(schema.Name)

	reply, err := s.llm.Generate(ctx, tpl, map[string]any{
		"field_spec": FieldSpec(schema),
		"source_url": page.URL,
		"content":    page.Content,
	})
	if err != nil {
		return nil, err
	}

	payload, err := llm.ExtractJSONArray(reply)
	if err != nil {
		return nil, fmt.Errorf("model reply unusable: %w", err)
	}

	var raw []any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("parse model reply: %w", err)
	}

	records := s.normalize(raw, schema, page.URL)
	s.log.LogDebugf("extracted %d records from %s", len(records), page.URL)
	return records, nil
}

// FieldSpec renders the schema for the prompt, one field per line.
func FieldSpec(schema batch.ExtractionSchema) string {
	var b strings.Builder
	for _, f := range schema.Fields {
		kind := "string"
		if f.List {
			kind = "list of strings"
		}
		if f.Description != "" {
			fmt.Fprintf(&b, "- %s: (%s) %s\n", f.Name, kind, f.Description)
		} else {
			fmt.Fprintf(&b, "- %s: (%s)\n", f.Name, kind)
		}
	}
	return strings.TrimSpace(b.String())
}

// normalize keeps only schema fields, coercing list fields to string slices
// and scalars to trimmed strings. Absent fields stay absent rather than
// becoming empties, and entries with nothing recognized are dropped.
func (s *Service) normalize(raw []any, schema batch.ExtractionSchema, sourceURL string) []batch.ExtractedRecord {
	now := time.Now().UTC()
	records := make([]batch.ExtractedRecord, 0, len(raw))

	for _, el := range raw {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}

		fields := make(map[string]any, len(schema.Fields))
		for _, f := range schema.Fields {
			v, ok := fieldValue(obj, f.Name)
			if !ok || v == nil {
				continue
			}
			if f.List {
				if vals := toStringList(v); len(vals) > 0 {
					fields[f.Name] = vals
				}
				continue
			}
			if sv := scalarString(v); sv != "" {
				fields[f.Name] = sv
			}
		}

		if len(fields) == 0 {
			continue
		}
		records = append(records, batch.ExtractedRecord{
			Fields:      fields,
			SourceURL:   sourceURL,
			ExtractedAt: now,
		})
	}
	return records
}

// fieldValue looks the field up by exact name first, then case-insensitively.
func fieldValue(obj map[string]any, name string) (any, bool) {
	if v, ok := obj[name]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// scalarString renders a model value as a trimmed string. Numbers keep their
// plain formatting so 15.5 does not become "15.500000".
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toStringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, el := range t {
			if sv := scalarString(el); sv != "" {
				out = append(out, sv)
			}
		}
		return out
	case string:
		if sv := strings.TrimSpace(t); sv != "" {
			return []string{sv}
		}
	}
	return nil
}
