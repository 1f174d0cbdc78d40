// Package dom implements render.Surface over a static HTML document. It backs
// offline renders from graphctl and the server-side preview of graph pages.
package dom

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/dgnsrekt/graphview/internal/chart"
)

// DefaultWidth is used for elements that carry no width hint.
const DefaultWidth = 900

var styleWidthRe = regexp.MustCompile(`(?i)(?:^|;)\s*width\s*:\s*([0-9]+(?:\.[0-9]+)?)px`)

// Plotter turns a chart page into an SVG fragment.
type Plotter interface {
	SVG(options chart.Options, data []chart.Series) ([]byte, error)
}

// Document is a parsed HTML document that charts can be drawn into.
type Document struct {
	mu           sync.Mutex
	doc          *goquery.Document
	plotter      Plotter
	defaultWidth int
}

// Parse reads an HTML document. defaultWidth <= 0 selects DefaultWidth.
func Parse(r io.Reader, plotter Plotter, defaultWidth int) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("dom parse: %w", err)
	}
	if defaultWidth <= 0 {
		defaultWidth = DefaultWidth
	}
	return &Document{doc: doc, plotter: plotter, defaultWidth: defaultWidth}, nil
}

// ParseString is Parse over a string.
func ParseString(html string, plotter Plotter, defaultWidth int) (*Document, error) {
	return Parse(strings.NewReader(html), plotter, defaultWidth)
}

// ElementWidth resolves the element's width from data-client-width, then an
// inline style width in px, then the document default.
func (d *Document) ElementWidth(_ context.Context, id string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel := d.byID(id)
	if sel.Length() == 0 {
		return 0, chart.NewError(chart.CodeTargetNotFound, fmt.Sprintf("element %q not found", id), nil)
	}
	if v, ok := sel.Attr("data-client-width"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n, nil
		}
	}
	if style, ok := sel.Attr("style"); ok {
		if m := styleWidthRe.FindStringSubmatch(style); m != nil {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil && f > 0 {
				return int(f), nil
			}
		}
	}
	return d.defaultWidth, nil
}

// Plot replaces the element's children with an SVG rendering of data.
func (d *Document) Plot(_ context.Context, id string, options chart.Options, data []chart.Series) error {
	if d.plotter == nil {
		return chart.NewError(chart.CodePlotFailed, "no plotter configured", nil)
	}
	svg, err := d.plotter.SVG(options, data)
	if err != nil {
		return chart.NewError(chart.CodePlotFailed, "svg render failed", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.byID(id)
	if sel.Length() == 0 {
		return chart.NewError(chart.CodeTargetNotFound, fmt.Sprintf("element %q not found", id), nil)
	}
	sel.SetHtml(string(svg))
	sel.SetAttr("data-plotted-width", strconv.Itoa(options.Width()))
	return nil
}

// DisableControl sets the disabled attribute. It reports false when there is
// no such element.
func (d *Document) DisableControl(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sel := d.byID(id)
	if sel.Length() == 0 {
		return false, nil
	}
	sel.SetAttr("disabled", "disabled")
	return true, nil
}

// Disabled reports whether the element exists and carries disabled.
func (d *Document) Disabled(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.byID(id).Attr("disabled")
	return ok
}

// InnerHTML returns the element's inner HTML.
func (d *Document) InnerHTML(id string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := d.byID(id)
	if sel.Length() == 0 {
		return "", chart.NewError(chart.CodeTargetNotFound, fmt.Sprintf("element %q not found", id), nil)
	}
	return sel.Html()
}

// HTML serializes the whole document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}

func (d *Document) byID(id string) *goquery.Selection {
	return d.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("id", "") == id
	}).First()
}
