package service

import (
	"sort"

	"pdf-review-server/internal/domain"
)

// paragraphGapThreshold groups runs into paragraphs for fallback matching.
// Stricter than the line threshold used for corpus reconstruction.
const paragraphGapThreshold = 10.0

// Locator finds a query fragment's true position inside a document. Each run
// is matched individually first; when a page yields nothing, every
// paragraph's concatenated text is matched as a fallback, anchored to the
// paragraph's middle run for coordinates.
type Locator struct {
	matcher *FragmentMatcher
	logger  domain.Logger
}

// NewLocator creates a locator on top of a fragment matcher.
func NewLocator(matcher *FragmentMatcher, logger domain.Logger) *Locator {
	return &Locator{matcher: matcher, logger: logger}
}

// Search scans the document for the query. With TargetPage set only that
// page is scanned; otherwise all pages in order. Absence is an empty slice,
// never an error. I/O-level faults are logged and cost at most the affected
// page.
func (l *Locator) Search(src domain.DocumentSource, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if opts.Query == "" {
		return nil, nil
	}

	var pages []int
	if opts.TargetPage != nil {
		p := *opts.TargetPage
		if p < 0 || p >= src.PageCount() {
			return nil, nil
		}
		pages = []int{p}
	} else {
		for p := 0; p < src.PageCount(); p++ {
			pages = append(pages, p)
		}
	}

	var results []domain.SearchResult
	for _, page := range pages {
		runs, err := src.PageRuns(page)
		if err != nil {
			l.logger.Warn("Page scan failed, skipping", "page", page+1, "error", err)
			continue
		}
		if len(runs) == 0 {
			continue
		}
		size, err := src.PageSize(page)
		if err != nil {
			l.logger.Warn("Page size read failed, skipping", "page", page+1, "error", err)
			continue
		}

		hits := l.searchPage(opts.Query, runs, size)
		results = append(results, hits...)
		if opts.ReturnFirst && len(results) > 0 {
			return results[:1], nil
		}
	}
	return results, nil
}

// searchPage matches runs individually, then falls back to per-paragraph
// concatenations (no-space first, then space-joined) when no run hit.
func (l *Locator) searchPage(query string, runs []domain.TextRun, size domain.PageSize) []domain.SearchResult {
	paragraphs := groupRunsIntoParagraphs(runs, size.Height)

	var results []domain.SearchResult
	runIndex := 0
	for pi, para := range paragraphs {
		for _, run := range para.Runs {
			if res := l.matcher.Match(query, run.Text); res.Found {
				results = append(results, buildSearchResult(run, run.Text, res, runIndex, pi+1, size))
			}
			runIndex++
		}
	}
	if len(results) > 0 {
		return results
	}

	// Paragraph fallback: the fragment may straddle a run boundary.
	runIndex = 0
	for pi, para := range paragraphs {
		if len(para.Runs) < 2 {
			runIndex += len(para.Runs)
			continue
		}
		anchor := para.MiddleRun()
		anchorIndex := runIndex + len(para.Runs)/2
		for _, joined := range []string{para.JoinedText(""), para.JoinedText(" ")} {
			if res := l.matcher.Match(query, joined); res.Found {
				results = append(results, buildSearchResult(anchor, joined, res, anchorIndex, pi+1, size))
				break
			}
		}
		runIndex += len(para.Runs)
	}
	return results
}

// LocateFragment runs the two-phase protocol for one parsed record: the
// model's hinted page first, then a full-document scan. The phase label in
// the result records which step succeeded, for diagnostics.
func (l *Locator) LocateFragment(src domain.DocumentSource, record domain.RawAnnotationRecord) domain.LocationResult {
	out := domain.LocationResult{Record: record, Phase: domain.LocationNotFound}
	if !record.HasLocation() {
		out.Phase = domain.LocationNoSelectionText
		return out
	}

	if record.Page >= 1 && record.Page <= src.PageCount() {
		target := record.Page - 1
		hits, err := l.Search(src, domain.SearchOptions{Query: record.Selected, TargetPage: &target, ReturnFirst: true})
		if err == nil && len(hits) > 0 {
			out.Result = &hits[0]
			out.Phase = domain.LocationDirectPageHit
			out.Success = true
			return out
		}
	}

	hits, err := l.Search(src, domain.SearchOptions{Query: record.Selected, ReturnFirst: true})
	if err == nil && len(hits) > 0 {
		out.Result = &hits[0]
		out.Phase = domain.LocationGlobalFallback
		out.Success = true
		return out
	}
	return out
}

// buildSearchResult converts an anchoring run into dual coordinate systems.
// The PDF baseline is lifted by the run height before flipping to top-left
// origin so the viewport box covers the glyphs rather than sitting below.
func buildSearchResult(run domain.TextRun, matched string, match MatchResult, runIndex, paragraphIndex int, size domain.PageSize) domain.SearchResult {
	viewportY := size.Height - (run.Y + run.Height)
	percent := 0.0
	if size.Height > 0 {
		percent = viewportY / size.Height * 100
	}
	return domain.SearchResult{
		Page:           run.Page,
		RunIndex:       runIndex,
		ParagraphIndex: paragraphIndex,
		MatchedText:    matched,
		Strategy:       string(match.Strategy),
		Confidence:     match.Confidence,
		PDFCoordinates: domain.Box{
			X: run.X, Y: run.Y, Width: run.Width, Height: run.Height,
		},
		ViewportCoordinates: domain.Box{
			X: run.X, Y: viewportY, Width: run.Width, Height: run.Height,
		},
		PageSize:        size,
		PositionPercent: percent,
	}
}

// groupRunsIntoParagraphs splits a page's runs wherever the vertical baseline
// distance between neighbors exceeds the paragraph threshold.
func groupRunsIntoParagraphs(runs []domain.TextRun, pageHeight float64) []domain.Paragraph {
	if len(runs) == 0 {
		return nil
	}
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

	var paragraphs []domain.Paragraph
	current := domain.Paragraph{Page: sorted[0].Page}
	lastY := pageHeight - sorted[0].Y

	for i, run := range sorted {
		y := pageHeight - run.Y
		if i > 0 && y-lastY > paragraphGapThreshold {
			paragraphs = append(paragraphs, current)
			current = domain.Paragraph{Page: run.Page}
		}
		current.Runs = append(current.Runs, run)
		lastY = y
	}
	paragraphs = append(paragraphs, current)
	return paragraphs
}
