package service

import (
	"strconv"
	"strings"

	"pdf-review-server/internal/domain"
)

// blockDelimiter separates review blocks in the model output.
const blockDelimiter = "---"

// ParseAnnotationBlocks turns raw model output into annotation records.
// Blocks are separated by delimiter lines; inside a block each field is a
// "KEY: value" line, with bare lines appended to the preceding field.
// Records missing a title or description are discarded silently.
func ParseAnnotationBlocks(content string) []domain.RawAnnotationRecord {
	var records []domain.RawAnnotationRecord
	for _, block := range splitBlocks(content) {
		rec := parseBlock(block)
		if err := rec.Validate(); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func splitBlocks(content string) []string {
	var blocks []string
	var current []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == blockDelimiter {
			if len(current) > 0 {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

func parseBlock(block string) domain.RawAnnotationRecord {
	rec := domain.RawAnnotationRecord{
		Type:     domain.AnnotationTypeContent,
		Severity: domain.SeverityMedium,
	}

	var lastField *string
	for _, line := range strings.Split(block, "\n") {
		key, value, ok := splitKeyValue(line)
		if !ok {
			// Continuation of a multi-line value.
			if lastField != nil && strings.TrimSpace(line) != "" {
				*lastField += "\n" + strings.TrimSpace(line)
			}
			continue
		}

		switch key {
		case "TYPE":
			if t := normalizeAnnotationType(value); t != "" {
				rec.Type = t
			}
			lastField = nil
		case "SEVERITY":
			if s := normalizeSeverity(value); s != "" {
				rec.Severity = s
			}
			lastField = nil
		case "PAGE":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
				rec.Page = n
			}
			lastField = nil
		case "TITLE":
			rec.Title = value
			lastField = &rec.Title
		case "DESCRIPTION":
			rec.Description = value
			lastField = &rec.Description
		case "SUGGESTION":
			rec.Suggestion = value
			lastField = &rec.Suggestion
		case "SELECTED":
			rec.Selected = normalizeSelected(value)
			lastField = &rec.Selected
		default:
			lastField = nil
		}
	}
	return rec
}

func splitKeyValue(line string) (key, value string, ok bool) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	key = strings.ToUpper(strings.TrimSpace(parts[0]))
	switch key {
	case "TYPE", "SEVERITY", "PAGE", "TITLE", "DESCRIPTION", "SUGGESTION", "SELECTED":
		return key, strings.TrimSpace(parts[1]), true
	}
	return "", "", false
}

func normalizeAnnotationType(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case domain.AnnotationTypeStructure:
		return domain.AnnotationTypeStructure
	case domain.AnnotationTypeFormat:
		return domain.AnnotationTypeFormat
	case domain.AnnotationTypeWriting:
		return domain.AnnotationTypeWriting
	case domain.AnnotationTypeContent:
		return domain.AnnotationTypeContent
	case domain.AnnotationTypePraise:
		return domain.AnnotationTypePraise
	}
	return ""
}

func normalizeSeverity(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case domain.SeverityHigh:
		return domain.SeverityHigh
	case domain.SeverityMedium:
		return domain.SeverityMedium
	case domain.SeverityLow:
		return domain.SeverityLow
	}
	return ""
}

// normalizeSelected maps sentinel variants the model produces to the
// canonical no-location marker.
func normalizeSelected(v string) string {
	trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(v), `"`))
	if strings.EqualFold(trimmed, domain.NoSpecificLocation) || trimmed == "" {
		return domain.NoSpecificLocation
	}
	return trimmed
}
