package service

import (
	"math"
	"testing"

	"pdf-review-server/internal/domain"
)

func newTestLocator() *Locator {
	return NewLocator(newTestMatcher(), &MockServiceLogger{})
}

// threePageDoc puts distinct sentences on three US letter pages. The target
// sentence on page 3 is split across two runs on the same line.
func threePageDoc() *fakeDocumentSource {
	size := domain.PageSize{Width: 612, Height: 792}
	return &fakeDocumentSource{
		pages: [][]domain.TextRun{
			{
				{Page: 0, Text: "introduction and scope", X: 72, Y: 700, Width: 150, Height: 12},
			},
			{
				{Page: 1, Text: "methods were applied carefully", X: 72, Y: 700, Width: 200, Height: 12},
			},
			{
				{Page: 2, Text: "the quick", X: 72, Y: 700, Width: 60, Height: 12},
				{Page: 2, Text: "brown fox", X: 140, Y: 700, Width: 60, Height: 12},
				{Page: 2, Text: "a closing remark", X: 72, Y: 650, Width: 110, Height: 12},
			},
		},
		sizes: []domain.PageSize{size, size, size},
	}
}

func TestSearch_DirectHitWithDualCoordinates(t *testing.T) {
	l := newTestLocator()
	src := threePageDoc()

	results, err := l.Search(src, domain.SearchOptions{Query: "quick"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	res := results[0]
	if res.Page != 2 {
		t.Fatalf("expected page 2, got %d", res.Page)
	}
	if res.Strategy != string(StrategyDirect) {
		t.Fatalf("expected direct strategy, got %s", res.Strategy)
	}
	if res.PDFCoordinates.Y != 700 {
		t.Fatalf("expected PDF baseline Y 700, got %v", res.PDFCoordinates.Y)
	}
	// viewport.Y = pageHeight - (baselineY + runHeight)
	if res.ViewportCoordinates.Y != 792-(700+12) {
		t.Fatalf("expected viewport Y 80, got %v", res.ViewportCoordinates.Y)
	}
	wantPercent := 80.0 / 792 * 100
	if math.Abs(res.PositionPercent-wantPercent) > 1e-9 {
		t.Fatalf("expected position percent %v, got %v", wantPercent, res.PositionPercent)
	}
}

func TestSearch_ParagraphFallbackAnchorsMiddleRun(t *testing.T) {
	l := newTestLocator()
	src := threePageDoc()

	// The fragment straddles the run boundary, so no single run matches and
	// the paragraph's no-space concatenation carries the hit.
	results, err := l.Search(src, domain.SearchOptions{Query: "quick brown"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	res := results[0]
	if res.Strategy != string(StrategyClean) {
		t.Fatalf("expected clean strategy via paragraph fallback, got %s", res.Strategy)
	}
	// Paragraph runs are {the quick, brown fox}; the middle run is the second.
	if res.PDFCoordinates.X != 140 {
		t.Fatalf("expected anchor at middle run X 140, got %v", res.PDFCoordinates.X)
	}
}

func TestSearch_TargetPageRestrictsScan(t *testing.T) {
	l := newTestLocator()
	src := threePageDoc()

	page := 0
	results, err := l.Search(src, domain.SearchOptions{Query: "quick", TargetPage: &page})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results on page 1, got %d", len(results))
	}

	page = 2
	results, err = l.Search(src, domain.SearchOptions{Query: "quick", TargetPage: &page})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result on page 3, got %d", len(results))
	}
}

func TestSearch_InvalidTargetPage(t *testing.T) {
	l := newTestLocator()
	src := threePageDoc()

	for _, page := range []int{-1, 3, 99} {
		p := page
		results, err := l.Search(src, domain.SearchOptions{Query: "quick", TargetPage: &p})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 0 {
			t.Fatalf("expected no results for out-of-range page %d, got %d", page, len(results))
		}
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	l := newTestLocator()
	src := threePageDoc()

	results, err := l.Search(src, domain.SearchOptions{Query: ""})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results for empty query, got %v", results)
	}
}

func TestSearch_ReturnFirstShortCircuits(t *testing.T) {
	size := domain.PageSize{Width: 612, Height: 792}
	src := &fakeDocumentSource{
		pages: [][]domain.TextRun{
			{{Page: 0, Text: "repeated phrase here", X: 72, Y: 700, Width: 140, Height: 12}},
			{{Page: 1, Text: "repeated phrase again", X: 72, Y: 700, Width: 140, Height: 12}},
		},
		sizes: []domain.PageSize{size, size},
	}

	l := newTestLocator()
	results, err := l.Search(src, domain.SearchOptions{Query: "repeated phrase", ReturnFirst: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 result with ReturnFirst, got %d", len(results))
	}
	if results[0].Page != 0 {
		t.Fatalf("expected the first hit in page order, got page %d", results[0].Page)
	}
}

func TestSearch_PageFaultCostsOnlyThatPage(t *testing.T) {
	src := threePageDoc()
	src.failPages = map[int]error{0: errFault, 1: errFault}

	l := newTestLocator()
	results, err := l.Search(src, domain.SearchOptions{Query: "quick"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Page != 2 {
		t.Fatalf("expected the surviving page to still match, got %v", results)
	}
}

func TestLocateFragment_DirectPageHit(t *testing.T) {
	l := newTestLocator()
	src := threePageDoc()

	rec := domain.RawAnnotationRecord{Title: "t", Description: "d", Selected: "quick", Page: 3}
	out := l.LocateFragment(src, rec)

	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.Phase != domain.LocationDirectPageHit {
		t.Fatalf("expected phase %q, got %q", domain.LocationDirectPageHit, out.Phase)
	}
	if out.Result == nil || out.Result.Page != 2 {
		t.Fatalf("expected hit on page index 2, got %+v", out.Result)
	}
}

func TestLocateFragment_GlobalFallbackOnWrongHint(t *testing.T) {
	l := newTestLocator()
	src := threePageDoc()

	rec := domain.RawAnnotationRecord{Title: "t", Description: "d", Selected: "quick", Page: 1}
	out := l.LocateFragment(src, rec)

	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.Phase != domain.LocationGlobalFallback {
		t.Fatalf("expected phase %q, got %q", domain.LocationGlobalFallback, out.Phase)
	}
	if out.Result == nil || out.Result.Page != 2 {
		t.Fatalf("expected hit on page index 2, got %+v", out.Result)
	}
}

func TestLocateFragment_NotFound(t *testing.T) {
	l := newTestLocator()
	src := threePageDoc()

	rec := domain.RawAnnotationRecord{Title: "t", Description: "d", Selected: "entirely absent wording", Page: 2}
	out := l.LocateFragment(src, rec)

	if out.Success {
		t.Fatalf("expected miss, got %+v", out)
	}
	if out.Phase != domain.LocationNotFound {
		t.Fatalf("expected phase %q, got %q", domain.LocationNotFound, out.Phase)
	}
	if out.Result != nil {
		t.Fatalf("expected nil result, got %+v", out.Result)
	}
}

func TestLocateFragment_NoSelectionText(t *testing.T) {
	l := newTestLocator()
	src := threePageDoc()

	rec := domain.RawAnnotationRecord{Title: "t", Description: "d", Selected: domain.NoSpecificLocation, Page: 2}
	out := l.LocateFragment(src, rec)

	if out.Success {
		t.Fatalf("expected miss, got %+v", out)
	}
	if out.Phase != domain.LocationNoSelectionText {
		t.Fatalf("expected phase %q, got %q", domain.LocationNoSelectionText, out.Phase)
	}
}
