package series

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/graphview/internal/chart"
)

// DefaultPageLen is the number of rows served per page.
const DefaultPageLen = 20000

// ReadQuery selects one page of one value column.
type ReadQuery struct {
	Collection string
	Label      string
	Column     string
	Page       int
	Start      string
	Stop       string
	// Filters restrict dims to a value. Empty values and non-dim keys are ignored.
	Filters map[string]string
}

// Page is a decoded page: unix-second timestamps and the matching values.
// A row without the column leaves a gap in Values.
type Page struct {
	Times  []int64
	Values chart.Series
}

// Len returns the number of rows in the page.
func (p Page) Len() int { return len(p.Times) }

// Reader serves chart pages out of a Store.
type Reader struct {
	store   Store
	pageLen int
	prefix  string
	options func() chart.Options
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithPageLen overrides DefaultPageLen.
func WithPageLen(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.pageLen = n
		}
	}
}

// WithPrefix sets the path prefix used in generated data URIs.
func WithPrefix(prefix string) ReaderOption {
	return func(r *Reader) { r.prefix = strings.TrimRight(prefix, "/") }
}

// WithOptions sets the options profile attached to each page. The profile is
// cloned per page.
func WithOptions(opts chart.Options) ReaderOption {
	return func(r *Reader) {
		if opts != nil {
			r.options = opts.Clone
		}
	}
}

// NewReader builds a Reader over store.
func NewReader(store Store, opts ...ReaderOption) *Reader {
	r := &Reader{store: store, pageLen: DefaultPageLen, options: chart.DefaultOptions}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PageLen returns the configured page length.
func (r *Reader) PageLen() int { return r.pageLen }

// Store returns the backing store.
func (r *Reader) Store() Store { return r.store }

// Read returns one page as a ChartResponse: data is [timestamps, values].
func (r *Reader) Read(ctx context.Context, q ReadQuery) (*chart.ChartResponse, error) {
	page, err := r.ReadPage(ctx, q)
	if err != nil {
		return nil, err
	}
	xs := make([]float64, len(page.Times))
	for i, ts := range page.Times {
		xs[i] = float64(ts)
	}
	return &chart.ChartResponse{
		Options: r.options(),
		Data:    []chart.Series{chart.Floats(xs...), page.Values},
	}, nil
}

// ReadPage fetches rows page*pageLen.. within the optional bounds, applies
// dim filters, then sums per timestamp when the collection has dims.
func (r *Reader) ReadPage(ctx context.Context, q ReadQuery) (Page, error) {
	if q.Page < 0 {
		return Page{}, chart.NewError(chart.CodeValidation, "page must not be negative", nil)
	}
	schema, err := r.store.Schema(ctx, q.Collection)
	if err != nil {
		return Page{}, err
	}
	if !schema.HasColumn(q.Column) {
		return Page{}, chart.NewError(chart.CodeValidation, fmt.Sprintf("column %q not in %q", q.Column, q.Collection), nil)
	}
	start, err := parseBound(q.Start)
	if err != nil {
		return Page{}, chart.NewError(chart.CodeValidation, "invalid ui.start", err)
	}
	stop, err := parseBound(q.Stop)
	if err != nil {
		return Page{}, chart.NewError(chart.CodeValidation, "invalid ui.stop", err)
	}

	rows, err := r.store.Frame(ctx, FrameQuery{
		Collection: q.Collection,
		Label:      q.Label,
		Start:      start,
		Stop:       stop,
		Offset:     q.Page * r.pageLen,
		Limit:      r.pageLen,
	})
	if err != nil {
		return Page{}, err
	}
	rows = applyFilters(rows, schema, q.Filters)

	if len(schema.Dims) > 0 {
		return sumByTime(rows, q.Column), nil
	}
	out := Page{Times: make([]int64, 0, len(rows)), Values: make(chart.Series, 0, len(rows))}
	for _, p := range rows {
		out.Times = append(out.Times, p.TS.Unix())
		out.Values = append(out.Values, p.Value(q.Column))
	}
	return out, nil
}

func applyFilters(rows []Point, schema Schema, filters map[string]string) []Point {
	active := make(map[string]string)
	for k, v := range filters {
		if v != "" && schema.HasDim(k) {
			active[k] = v
		}
	}
	if len(active) == 0 {
		return rows
	}
	out := rows[:0:0]
	for _, p := range rows {
		keep := true
		for k, v := range active {
			if p.Dims[k] != v {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, p)
		}
	}
	return out
}

// sumByTime adds the column across dims per timestamp. A timestamp where no
// row carries the column stays a gap.
func sumByTime(rows []Point, column string) Page {
	sums := make(map[int64]*float64)
	for _, p := range rows {
		ts := p.TS.Unix()
		v := p.Value(column)
		if v == nil {
			if _, seen := sums[ts]; !seen {
				sums[ts] = nil
			}
			continue
		}
		if sums[ts] == nil {
			sum := *v
			sums[ts] = &sum
			continue
		}
		*sums[ts] += *v
	}
	out := Page{Times: make([]int64, 0, len(sums)), Values: make(chart.Series, 0, len(sums))}
	for ts := range sums {
		out.Times = append(out.Times, ts)
	}
	sort.Slice(out.Times, func(i, j int) bool { return out.Times[i] < out.Times[j] })
	for _, ts := range out.Times {
		out.Values = append(out.Values, sums[ts])
	}
	return out
}

var boundLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseBound accepts unix seconds or one of boundLayouts, read as UTC.
func parseBound(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.Unix(n, 0).UTC()
		return &t, nil
	}
	for _, layout := range boundLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised time %q", s)
}
