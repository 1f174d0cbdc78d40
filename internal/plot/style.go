package plot

import (
	"strconv"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dgnsrekt/graphview/internal/chart"
)

var namedColors = map[string]drawing.Color{
	"black":  drawing.ColorBlack,
	"white":  drawing.ColorWhite,
	"red":    drawing.ColorRed,
	"green":  drawing.ColorGreen,
	"blue":   drawing.ColorBlue,
	"orange": {R: 255, G: 165, B: 0, A: 255},
	"purple": {R: 128, G: 0, B: 128, A: 255},
	"gray":   {R: 128, G: 128, B: 128, A: 255},
	"grey":   {R: 128, G: 128, B: 128, A: 255},
}

func seriesShown(seriesOpts map[string]any) bool {
	if seriesOpts == nil {
		return true
	}
	show, ok := seriesOpts["show"].(bool)
	return !ok || show
}

func seriesLabel(seriesOpts map[string]any, idx int) string {
	if s, ok := seriesOpts["label"].(string); ok && s != "" {
		return s
	}
	return "Value" + strconv.Itoa(idx)
}

func seriesStyle(seriesOpts map[string]any, idx int) gochart.Style {
	st := gochart.Style{
		StrokeColor: gochart.GetDefaultColor(idx - 1),
		StrokeWidth: 1,
	}
	if seriesOpts == nil {
		return st
	}
	if c, ok := parseColor(seriesOpts["stroke"]); ok {
		st.StrokeColor = c
	}
	if c, ok := parseColor(seriesOpts["fill"]); ok {
		st.FillColor = c
	}
	if w, ok := chart.ToFloat(seriesOpts["width"]); ok && w > 0 {
		st.StrokeWidth = w
	}
	if dash, ok := seriesOpts["dash"].([]any); ok {
		for _, d := range dash {
			if f, ok := chart.ToFloat(d); ok {
				st.StrokeDashArray = append(st.StrokeDashArray, f)
			}
		}
	}
	return st
}

// parseColor accepts CSS hex (#rgb, #rrggbb), rgb()/rgba() and a few names.
func parseColor(v any) (drawing.Color, bool) {
	s, ok := v.(string)
	if !ok {
		return drawing.Color{}, false
	}
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return drawing.Color{}, false
	case strings.HasPrefix(s, "#"):
		hex := strings.TrimPrefix(s, "#")
		if len(hex) != 3 && len(hex) != 6 {
			return drawing.Color{}, false
		}
		if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
			return drawing.Color{}, false
		}
		return drawing.ColorFromHex(hex), true
	case strings.HasPrefix(s, "rgb"):
		return parseRGBA(s)
	}
	c, ok := namedColors[s]
	return c, ok
}

func parseRGBA(s string) (drawing.Color, bool) {
	open, closing := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || closing <= open {
		return drawing.Color{}, false
	}
	parts := strings.Split(s[open+1:closing], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return drawing.Color{}, false
	}
	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 || n > 255 {
			return drawing.Color{}, false
		}
		rgb[i] = uint8(n)
	}
	alpha := uint8(255)
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return drawing.Color{}, false
		}
		alpha = uint8(a*255 + 0.5)
	}
	return drawing.Color{R: rgb[0], G: rgb[1], B: rgb[2], A: alpha}, true
}
