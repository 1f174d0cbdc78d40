// Package series holds the time series the chart-data service pages through
// and turns them into chart responses.
package series

import (
	"context"
	"fmt"
	"time"

	"github.com/dgnsrekt/graphview/internal/chart"
)

// Schema describes a collection. TimeColumn is the only time index; Dims are
// the remaining categorical index columns; Columns are numeric values.
type Schema struct {
	TimeColumn string   `json:"time_column"`
	Dims       []string `json:"dims,omitempty"`
	Columns    []string `json:"columns"`
}

// HasColumn reports whether name is a value column.
func (s Schema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// HasDim reports whether name is a categorical index column.
func (s Schema) HasDim(name string) bool {
	for _, d := range s.Dims {
		if d == name {
			return true
		}
	}
	return false
}

// Point is one row of a series. A column missing from Values is a gap.
type Point struct {
	TS     time.Time          `json:"ts"`
	Dims   map[string]string  `json:"dims,omitempty"`
	Values map[string]float64 `json:"values"`
}

// Value returns the column's sample, or nil when the row has none.
func (p Point) Value(column string) *float64 {
	v, ok := p.Values[column]
	if !ok {
		return nil
	}
	return &v
}

// FrameQuery selects rows of one series ordered by time. Start and Stop are
// inclusive bounds. Limit <= 0 means no limit.
type FrameQuery struct {
	Collection string
	Label      string
	Start      *time.Time
	Stop       *time.Time
	Offset     int
	Limit      int
}

// Store is the backing storage of the service.
type Store interface {
	Collections(ctx context.Context) ([]string, error)
	Labels(ctx context.Context, collection string) ([]string, error)
	Schema(ctx context.Context, collection string) (Schema, error)
	Frame(ctx context.Context, q FrameQuery) ([]Point, error)
}

func collectionNotFound(name string) error {
	return chart.NewError(chart.CodeSeriesNotFound, fmt.Sprintf("collection %q not found", name), nil)
}

func labelNotFound(collection, label string) error {
	return chart.NewError(chart.CodeSeriesNotFound, fmt.Sprintf("series %q not found in %q", label, collection), nil)
}
