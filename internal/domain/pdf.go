package domain

// TextRun is one positioned text run pulled from a PDF content stream.
// X/Y is the run's baseline origin in PDF space (origin at the page's
// bottom-left corner). Runs are rebuilt on every page read and never persisted.
type TextRun struct {
	Page   int     `json:"page"` // 0-based page index
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Paragraph is an ordered group of runs on one page, grouped by vertical
// proximity. It is only a matching unit, not a persisted structure.
type Paragraph struct {
	Page int
	Runs []TextRun
}

// JoinedText concatenates the paragraph's run texts with the given separator.
func (p Paragraph) JoinedText(sep string) string {
	if len(p.Runs) == 0 {
		return ""
	}
	out := p.Runs[0].Text
	for _, r := range p.Runs[1:] {
		out += sep + r.Text
	}
	return out
}

// MiddleRun returns the run anchoring the paragraph for coordinate purposes.
func (p Paragraph) MiddleRun() TextRun {
	if len(p.Runs) == 0 {
		return TextRun{}
	}
	return p.Runs[len(p.Runs)/2]
}

// PageSize is a page's dimensions at the reference scale (72 dpi points).
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DocumentSource exposes a parsed document to the text-location core.
// Implementations absorb page-level read faults: a broken page yields an
// empty run list, not an error that aborts the whole scan.
type DocumentSource interface {
	PageCount() int
	PageRuns(page int) ([]TextRun, error)
	PageSize(page int) (PageSize, error)
	Close() error
}
