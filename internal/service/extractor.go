package service

import (
	"fmt"
	"sort"
	"strings"

	"pdf-review-server/internal/domain"
)

// lineGapThreshold is the vertical delta (layout units) above which two runs
// start separate lines during corpus reconstruction.
const lineGapThreshold = 5.0

// CorpusExtractor flattens a document into the full text sent to the review
// model: one page-delimiter marker per page, then the page's text rebuilt
// line by line in reading order.
type CorpusExtractor struct {
	logger domain.Logger
}

// NewCorpusExtractor creates a new corpus extractor.
func NewCorpusExtractor(logger domain.Logger) *CorpusExtractor {
	return &CorpusExtractor{logger: logger}
}

// ExtractFullText walks pages 1..N in order. A page that fails to read
// contributes only its delimiter; the build never aborts on a single page.
// Callers must treat empty output as "extraction failed".
func (e *CorpusExtractor) ExtractFullText(src domain.DocumentSource) string {
	if src == nil || src.PageCount() == 0 {
		return ""
	}

	var sb strings.Builder
	for page := 0; page < src.PageCount(); page++ {
		fmt.Fprintf(&sb, "=== Page %d ===\n", page+1)

		runs, err := src.PageRuns(page)
		if err != nil {
			e.logger.Warn("Failed to read page runs, skipping page", "page", page+1, "error", err)
			continue
		}
		if len(runs) == 0 {
			continue
		}
		size, err := src.PageSize(page)
		if err != nil {
			e.logger.Warn("Failed to read page size, skipping page", "page", page+1, "error", err)
			continue
		}

		for _, line := range groupRunsIntoLines(runs, size.Height, lineGapThreshold) {
			parts := make([]string, 0, len(line))
			for _, run := range line {
				if t := strings.TrimSpace(run.Text); t != "" {
					parts = append(parts, t)
				}
			}
			if len(parts) > 0 {
				sb.WriteString(strings.Join(parts, " "))
				sb.WriteString("\n")
			}
		}
	}

	return sb.String()
}

// groupRunsIntoLines sorts runs top-to-bottom using top-left-origin Y
// (pageHeight - baselineY), then splits into lines wherever the vertical
// delta exceeds the threshold. Runs within a line are ordered left to right.
func groupRunsIntoLines(runs []domain.TextRun, pageHeight, threshold float64) [][]domain.TextRun {
	sorted := make([]domain.TextRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		yi := pageHeight - sorted[i].Y
		yj := pageHeight - sorted[j].Y
		if yi != yj {
			return yi < yj
		}
		return sorted[i].X < sorted[j].X
	})

	var lines [][]domain.TextRun
	var current []domain.TextRun
	var lastY float64

	for i, run := range sorted {
		y := pageHeight - run.Y
		if i > 0 && y-lastY > threshold {
			lines = append(lines, current)
			current = nil
		}
		current = append(current, run)
		lastY = y
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}
	return lines
}
