package plot

import (
	"bytes"
	"strings"
	"testing"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dgnsrekt/graphview/internal/chart"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   any
		want drawing.Color
		ok   bool
	}{
		{in: "red", want: drawing.ColorRed, ok: true},
		{in: "#ff0000", want: drawing.Color{R: 255, A: 255}, ok: true},
		{in: "rgba(255, 0, 0, 0.3)", want: drawing.Color{R: 255, A: 77}, ok: true},
		{in: "rgb(0,128,0)", want: drawing.Color{G: 128, A: 255}, ok: true},
		{in: "rgba(300, 0, 0, 1)", ok: false},
		{in: "#zzz", ok: false},
		{in: "chartreuse-ish", ok: false},
		{in: 12, ok: false},
	}
	for _, tt := range tests {
		got, ok := parseColor(tt.in)
		if ok != tt.ok {
			t.Fatalf("parseColor(%v) ok = %v; want %v", tt.in, ok, tt.ok)
		}
		if ok && got != tt.want {
			t.Fatalf("parseColor(%v) = %+v; want %+v", tt.in, got, tt.want)
		}
	}
}

func TestSeriesStyleFromOptions(t *testing.T) {
	seriesOpts := chart.DefaultOptions().Series()[1]
	st := seriesStyle(seriesOpts, 1)
	if st.StrokeColor != drawing.ColorRed {
		t.Fatalf("StrokeColor = %+v; want red", st.StrokeColor)
	}
	if st.StrokeWidth != 1 {
		t.Fatalf("StrokeWidth = %v; want 1", st.StrokeWidth)
	}
	if len(st.StrokeDashArray) != 2 || st.StrokeDashArray[0] != 10 || st.StrokeDashArray[1] != 5 {
		t.Fatalf("StrokeDashArray = %v; want [10 5]", st.StrokeDashArray)
	}
	if st.FillColor.A == 0 {
		t.Fatal("FillColor alpha = 0; want translucent fill")
	}
}

func TestSVGUsesOptionSize(t *testing.T) {
	opts := chart.DefaultOptions()
	opts.SetWidth(640)
	out, err := New().SVG(opts, []chart.Series{chart.Floats(1700000000, 1700000060, 1700000120), chart.Floats(1, 3, 2)})
	if err != nil {
		t.Fatalf("SVG() = %v; want nil", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(out), []byte("<svg")) {
		t.Fatalf("SVG() output does not start with <svg: %q", out[:min(len(out), 40)])
	}
	if !strings.Contains(string(out), `width="640"`) {
		t.Fatal("SVG() output missing width=\"640\"")
	}
}

func TestSVGSinglePointAndFlatSeries(t *testing.T) {
	if _, err := New().SVG(chart.Options{}, []chart.Series{chart.Floats(1700000000), chart.Floats(5)}); err != nil {
		t.Fatalf("SVG(single point) = %v; want nil", err)
	}
	if _, err := New().SVG(chart.Options{}, []chart.Series{chart.Floats(1, 2, 3), chart.Floats(7, 7, 7)}); err != nil {
		t.Fatalf("SVG(flat) = %v; want nil", err)
	}
}

func TestSVGWithoutYSeriesIsBlank(t *testing.T) {
	out, err := New().SVG(chart.Options{"width": 300, "height": 100}, []chart.Series{chart.Floats(1, 2)})
	if err != nil {
		t.Fatalf("SVG() = %v; want nil", err)
	}
	if !strings.Contains(string(out), "<svg") {
		t.Fatalf("SVG() = %q; want svg document", out)
	}
}

func TestSVGSkipsHiddenSeries(t *testing.T) {
	opts := chart.Options{"series": []any{map[string]any{}, map[string]any{"show": false}}}
	series, _, _ := New().buildSeries(opts, []chart.Series{chart.Floats(1, 2), chart.Floats(3, 4)})
	if len(series) != 0 {
		t.Fatalf("buildSeries() = %d series; want 0", len(series))
	}
}

func TestBuildSeriesSkipsGaps(t *testing.T) {
	x := chart.Floats(1, 2, 3, 4)
	y := chart.Series{chart.Floats(10)[0], nil, chart.Floats(-50)[0], chart.Floats(30)[0]}
	x[3] = nil

	series, _, yr := New().buildSeries(chart.Options{}, []chart.Series{x, y})
	if len(series) != 1 {
		t.Fatalf("buildSeries() = %d series; want 1", len(series))
	}
	cs := series[0].(gochart.ContinuousSeries)
	if len(cs.XValues) != 2 || cs.XValues[1] != 3 || cs.YValues[1] != -50 {
		t.Fatalf("series = %v/%v; want x [1 3] y [10 -50]", cs.XValues, cs.YValues)
	}
	if yr.Min > -50 || yr.Max < 10 || yr.Max >= 30 {
		t.Fatalf("y range = [%v, %v]; want gap rows excluded", yr.Min, yr.Max)
	}
}

func TestPNG(t *testing.T) {
	out, err := New().PNG(chart.DefaultOptions(), []chart.Series{chart.Floats(1, 2, 3), chart.Floats(1, 2, 3)})
	if err != nil {
		t.Fatalf("PNG() = %v; want nil", err)
	}
	if !bytes.HasPrefix(out, []byte("\x89PNG")) {
		t.Fatal("PNG() output missing PNG signature")
	}
}
