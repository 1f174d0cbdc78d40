package series

import (
	"github.com/montanaflynn/stats"

	"github.com/dgnsrekt/graphview/internal/chart"
)

// Summary describes the values of one page. Count covers rows with a value;
// Gaps counts the rows without one.
type Summary struct {
	Count  int     `json:"count"`
	Gaps   int     `json:"gaps"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
	First  int64   `json:"first_ts"`
	Last   int64   `json:"last_ts"`
}

// Summarize computes descriptive statistics of a page.
func Summarize(p Page) (Summary, error) {
	if p.Len() == 0 {
		return Summary{}, chart.NewError(chart.CodeEmptySeries, "page has no rows", nil)
	}
	data := stats.Float64Data(p.Values.Present())
	if len(data) == 0 {
		return Summary{}, chart.NewError(chart.CodeEmptySeries, "page has only gaps", nil)
	}
	s := Summary{Count: len(data), Gaps: p.Len() - len(data), First: p.Times[0], Last: p.Times[p.Len()-1]}

	var err error
	if s.Min, err = data.Min(); err != nil {
		return Summary{}, err
	}
	if s.Max, err = data.Max(); err != nil {
		return Summary{}, err
	}
	if s.Mean, err = data.Mean(); err != nil {
		return Summary{}, err
	}
	if s.Median, err = data.Median(); err != nil {
		return Summary{}, err
	}
	if s.StdDev, err = data.StandardDeviation(); err != nil {
		return Summary{}, err
	}
	if s.P25, err = data.Percentile(25); err != nil {
		return Summary{}, err
	}
	if s.P75, err = data.Percentile(75); err != nil {
		return Summary{}, err
	}
	return s, nil
}
