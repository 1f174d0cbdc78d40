// Package plot renders ChartResponse pages server-side with go-chart. It
// understands the subset of uPlot options the service emits: width, height,
// title and per-series show/label/stroke/width/fill/dash.
package plot

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/dgnsrekt/graphview/internal/chart"
)

const (
	defaultWidth  = 900
	defaultHeight = 300
	timeLayout    = "2006-01-02 15:04"
)

// Plotter draws chart pages into SVG or PNG.
type Plotter struct {
	// TimeAxis formats x values as UTC unix-second timestamps.
	TimeAxis bool
}

// New returns a Plotter with a time x axis.
func New() *Plotter {
	return &Plotter{TimeAxis: true}
}

// SVG renders the page as an SVG document.
func (p *Plotter) SVG(options chart.Options, data []chart.Series) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.render(gochart.SVG, options, data, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PNG renders the page as a PNG image.
func (p *Plotter) PNG(options chart.Options, data []chart.Series) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.render(gochart.PNG, options, data, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Plotter) render(rp gochart.RendererProvider, options chart.Options, data []chart.Series, w io.Writer) error {
	width, height := size(options)
	series, xr, yr := p.buildSeries(options, data)
	if len(series) == 0 {
		return blank(rp, width, height, w)
	}

	c := gochart.Chart{
		Title:      options.Title(),
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 20, Left: 16, Right: 16, Bottom: 10}},
		XAxis: gochart.XAxis{
			Range:          xr,
			ValueFormatter: p.xFormatter(),
		},
		YAxis:  gochart.YAxis{Range: yr},
		Series: series,
	}
	if hasLabels(series) {
		c.Elements = []gochart.Renderable{gochart.Legend(&c)}
	}
	if err := c.Render(rp, w); err != nil {
		return fmt.Errorf("plot render: %w", err)
	}
	return nil
}

func (p *Plotter) buildSeries(options chart.Options, data []chart.Series) ([]gochart.Series, *gochart.ContinuousRange, *gochart.ContinuousRange) {
	if len(data) < 2 || len(data[0]) == 0 {
		return nil, nil, nil
	}
	styles := options.Series()

	var out []gochart.Series
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for i := 1; i < len(data); i++ {
		var seriesOpts map[string]any
		if i < len(styles) {
			seriesOpts = styles[i]
		}
		if !seriesShown(seriesOpts) {
			continue
		}
		xs, ys := pairs(data[0], data[i])
		if len(xs) == 0 {
			continue
		}
		for _, v := range ys {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			yMin = math.Min(yMin, v)
			yMax = math.Max(yMax, v)
		}
		out = append(out, gochart.ContinuousSeries{
			Name:    seriesLabel(seriesOpts, i),
			Style:   seriesStyle(seriesOpts, i),
			XValues: xs,
			YValues: ys,
		})
	}
	if len(out) == 0 {
		return nil, nil, nil
	}

	xMin, xMax := bounds(data[0].Present())
	xr := padRange(xMin, xMax)
	if math.IsInf(yMin, 1) {
		yMin, yMax = 0, 0
	}
	yr := padRange(yMin, yMax)
	return out, xr, yr
}

// pairs zips x and y, skipping indexes where either sample is a gap.
func pairs(x, y chart.Series) ([]float64, []float64) {
	n := min(len(x), len(y))
	xs, ys := make([]float64, 0, n), make([]float64, 0, n)
	for i := range n {
		xv, xok := x.At(i)
		yv, yok := y.At(i)
		if xok && yok {
			xs = append(xs, xv)
			ys = append(ys, yv)
		}
	}
	return xs, ys
}

func (p *Plotter) xFormatter() gochart.ValueFormatter {
	if !p.TimeAxis {
		return gochart.FloatValueFormatter
	}
	return func(v interface{}) string {
		f, ok := v.(float64)
		if !ok {
			return fmt.Sprint(v)
		}
		return time.Unix(int64(f), 0).UTC().Format(timeLayout)
	}
}

func size(options chart.Options) (int, int) {
	w, h := options.Width(), options.Height()
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

func bounds(vs []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}

// padRange widens a degenerate range; go-chart refuses zero-width ranges.
func padRange(lo, hi float64) *gochart.ContinuousRange {
	if hi > lo {
		return &gochart.ContinuousRange{Min: lo, Max: hi}
	}
	pad := math.Abs(lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	return &gochart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func hasLabels(series []gochart.Series) bool {
	for _, s := range series {
		if s.GetName() != "" {
			return true
		}
	}
	return false
}

func blank(rp gochart.RendererProvider, width, height int, w io.Writer) error {
	r, err := rp(width, height)
	if err != nil {
		return fmt.Errorf("plot blank: %w", err)
	}
	r.SetFillColor(gochart.ColorWhite)
	r.MoveTo(0, 0)
	r.LineTo(width, 0)
	r.LineTo(width, height)
	r.LineTo(0, height)
	r.LineTo(0, 0)
	r.Close()
	r.Fill()
	if err := r.Save(w); err != nil {
		return fmt.Errorf("plot blank: %w", err)
	}
	return nil
}
