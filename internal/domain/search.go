package domain

// Box is an axis-aligned rectangle. The coordinate system it belongs to is
// determined by the field it is stored in (PDF vs viewport).
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SearchResult is one located occurrence of a query fragment.
//
// PDFCoordinates are measured from the page's bottom-left corner (the content
// stream's native system). ViewportCoordinates are measured from the top-left
// corner for on-screen placement, with the baseline Y lifted by the run height
// so a highlight box covers the glyphs instead of sitting below them:
//
//	viewport.Y = pageHeight - (baselineY + runHeight)
type SearchResult struct {
	Page                int      `json:"page"`            // 0-based page index
	RunIndex            int      `json:"run_index"`       // index of the anchor run on its page
	ParagraphIndex      int      `json:"paragraph_index"` // 1-based, for display
	MatchedText         string   `json:"matched_text"`
	Strategy            string   `json:"strategy"` // matcher strategy that succeeded
	Confidence          float64  `json:"confidence"`
	PDFCoordinates      Box      `json:"pdf_coordinates"`
	ViewportCoordinates Box      `json:"viewport_coordinates"`
	PageSize            PageSize `json:"page_size"`
	PositionPercent     float64  `json:"position_percent"` // vertical position relative to the page, 0..100
}

// SearchOptions controls a document search.
type SearchOptions struct {
	Query string `json:"query"`
	// TargetPage restricts the scan to a single 0-based page when set.
	TargetPage *int `json:"target_page,omitempty"`
	// ReturnFirst short-circuits on the first hit.
	ReturnFirst bool `json:"return_first"`
}

// Location phase labels recorded per fragment by the two-phase protocol.
const (
	LocationDirectPageHit   = "direct page hit"
	LocationGlobalFallback  = "global fallback hit"
	LocationNotFound        = "not found"
	LocationNoSelectionText = "no selection text"
)

// LocationResult pairs a parsed annotation record with the outcome of the
// two-phase location protocol. Transient: it only feeds the assembler.
type LocationResult struct {
	Record  RawAnnotationRecord
	Result  *SearchResult // nil when not found
	Phase   string        // one of the Location* labels above
	Success bool
}
