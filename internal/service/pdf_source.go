package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"pdf-review-server/internal/domain"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/net/html"
)

const defaultRunHeight = 12.0

// FitzDocument adapts a go-fitz document to domain.DocumentSource. Runs are
// recovered from MuPDF's positioned-HTML rendering of each page: every
// absolutely-placed paragraph element becomes one run, with top/left read
// from its style attribute and converted to a PDF-space baseline.
type FitzDocument struct {
	doc       *fitz.Document
	logger    domain.Logger
	pageCount int
}

// OpenFitzDocument opens a PDF from memory.
func OpenFitzDocument(pdfBytes []byte, logger domain.Logger) (domain.DocumentSource, error) {
	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &FitzDocument{
		doc:       doc,
		logger:    logger,
		pageCount: doc.NumPage(),
	}, nil
}

// PageCount returns the number of pages.
func (d *FitzDocument) PageCount() int {
	return d.pageCount
}

// PageSize returns the page bounds at the reference scale.
func (d *FitzDocument) PageSize(page int) (domain.PageSize, error) {
	bound, err := d.doc.Bound(page)
	if err != nil {
		return domain.PageSize{}, fmt.Errorf("failed to read page bounds: %w", err)
	}
	return domain.PageSize{
		Width:  float64(bound.Dx()),
		Height: float64(bound.Dy()),
	}, nil
}

const pageReadTimeout = 90 * time.Second

// PageRuns extracts the positioned runs of one page. Read faults are
// absorbed: the page contributes no runs and the scan continues.
func (d *FitzDocument) PageRuns(page int) ([]domain.TextRun, error) {
	type pageResult struct {
		html string
		err  error
	}
	resultCh := make(chan pageResult, 1)
	go func(idx int) {
		h, e := d.doc.HTML(idx, false)
		resultCh <- pageResult{html: h, err: e}
	}(page)

	var pageHTML string
	var err error
	select {
	case res := <-resultCh:
		pageHTML, err = res.html, res.err
	case <-time.After(pageReadTimeout):
		d.logger.Warn("Page read timeout, treating page as empty", "page", page+1, "timeout_sec", int(pageReadTimeout.Seconds()))
		go func() { <-resultCh }() // drain so the goroutine can exit
		return nil, nil
	}
	if err != nil {
		d.logger.Warn("Failed to read page, treating page as empty", "page", page+1, "error", err)
		return nil, nil
	}

	size, err := d.PageSize(page)
	if err != nil {
		d.logger.Warn("Failed to read page size, treating page as empty", "page", page+1, "error", err)
		return nil, nil
	}

	return parsePageRuns(page, pageHTML, size.Height), nil
}

// Close releases the underlying document.
func (d *FitzDocument) Close() error {
	return d.doc.Close()
}

// parsePageRuns walks MuPDF's HTML output for one page and turns each
// positioned <p> element into a TextRun. The HTML places text with top-left
// origin style offsets; baselines are converted back to bottom-left origin.
func parsePageRuns(page int, pageHTML string, pageHeight float64) []domain.TextRun {
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil || doc == nil {
		return nil
	}

	var runs []domain.TextRun
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "p") {
			style := attrValue(n, "style")
			top, hasTop := styleValuePt(style, "top")
			left, _ := styleValuePt(style, "left")
			if hasTop {
				text := collectText(n)
				if strings.TrimSpace(text) != "" {
					height := runHeight(n)
					runs = append(runs, domain.TextRun{
						Page:   page,
						Text:   strings.TrimSpace(text),
						X:      left,
						Y:      pageHeight - top - height, // PDF-space baseline
						Width:  estimateRunWidth(text, height),
						Height: height,
					})
				}
				return // positioned paragraphs do not nest
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return runs
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// styleValuePt reads a "key:123.4pt" declaration out of an inline style.
func styleValuePt(style, key string) (float64, bool) {
	for _, decl := range strings.Split(style, ";") {
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) != key {
			continue
		}
		val := strings.TrimSpace(parts[1])
		val = strings.TrimSuffix(val, "pt")
		val = strings.TrimSuffix(val, "px")
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// runHeight takes the font size of the first styled descendant, falling back
// to a conventional body size.
func runHeight(n *html.Node) float64 {
	var find func(n *html.Node) (float64, bool)
	find = func(n *html.Node) (float64, bool) {
		if n.Type == html.ElementNode {
			if size, ok := styleValuePt(attrValue(n, "style"), "font-size"); ok {
				return size, true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if size, ok := find(c); ok {
				return size, true
			}
		}
		return 0, false
	}
	if size, ok := find(n); ok && size > 0 {
		return size
	}
	return defaultRunHeight
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// estimateRunWidth approximates advance width from glyph count. MuPDF's HTML
// rendering does not carry per-run widths, and the highlight box only needs
// to roughly cover the text.
func estimateRunWidth(text string, height float64) float64 {
	return float64(utf8.RuneCountInString(strings.TrimSpace(text))) * height * 0.5
}
