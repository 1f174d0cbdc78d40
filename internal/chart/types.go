package chart

import "math"

// Options is the opaque plotting configuration carried by a ChartResponse.
// Only "width" is ever written by this module.
type Options map[string]any

// Series is one data column. A nil sample is a gap and travels as JSON null,
// which uPlot draws as a break in the line.
type Series []*float64

// Floats builds a Series without gaps.
func Floats(vs ...float64) Series {
	out := make(Series, len(vs))
	for i := range vs {
		out[i] = &vs[i]
	}
	return out
}

// At returns sample i; ok is false for gaps and out-of-range indexes.
func (s Series) At(i int) (v float64, ok bool) {
	if i < 0 || i >= len(s) || s[i] == nil {
		return 0, false
	}
	return *s[i], true
}

// Present returns the non-gap samples in order.
func (s Series) Present() []float64 {
	out := make([]float64, 0, len(s))
	for _, v := range s {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// ChartResponse is one page of chart configuration and data as served by
// the /read endpoint. Data[0] is the x series, Data[1:] are y series.
type ChartResponse struct {
	Options Options  `json:"options"`
	Data    []Series `json:"data"`
}

// SeriesLength returns the length of the first series, the page-size signal.
// ok is false when there is no series at all.
func (r ChartResponse) SeriesLength() (n int, ok bool) {
	if len(r.Data) == 0 {
		return 0, false
	}
	return len(r.Data[0]), true
}

// Width returns options.width as an int, or 0 when unset or not numeric.
func (o Options) Width() int { return o.intValue("width") }

// Height returns options.height as an int, or 0 when unset or not numeric.
func (o Options) Height() int { return o.intValue("height") }

// Title returns options.title when it is a string.
func (o Options) Title() string {
	s, _ := o["title"].(string)
	return s
}

// SetWidth overwrites options.width.
func (o Options) SetWidth(px int) { o["width"] = px }

// Series returns options.series entries that are objects. Non-object entries
// come back as nil so indexes stay aligned with ChartResponse.Data.
func (o Options) Series() []map[string]any {
	raw, ok := o["series"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, len(raw))
	for i, s := range raw {
		m, _ := s.(map[string]any)
		out[i] = m
	}
	return out
}

func (o Options) intValue(key string) int {
	if o == nil {
		return 0
	}
	return ToInt(o[key])
}

// Clone returns a deep copy of the options tree.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	return Options(cloneMap(o))
}

// ToInt converts the numeric shapes produced by encoding/json, yaml.v3 and
// Go literals to an int. Anything else yields 0.
func ToInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}

// ToFloat is ToInt for float64 values. ok is false for non-numeric input.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Options:
		return Options(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []float64:
		return append([]float64(nil), t...)
	case []int:
		return append([]int(nil), t...)
	default:
		return v
	}
}
