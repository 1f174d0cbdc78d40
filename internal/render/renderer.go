package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/graphview/internal/chart"
)

// DefaultNextControlID is the pagination control the graph page renders.
const DefaultNextControlID = "next-btn"

// Surface is the DOM collaborator a chart is drawn into.
type Surface interface {
	// ElementWidth returns the rendered pixel width of the element. A missing
	// element yields a TARGET_NOT_FOUND CodedError.
	ElementWidth(ctx context.Context, id string) (int, error)
	// Plot draws data into the element using options. Layout and styling are
	// owned by the implementation's plotting library.
	Plot(ctx context.Context, id string, options chart.Options, data []chart.Series) error
	// DisableControl disables the element and reports whether it existed.
	DisableControl(ctx context.Context, id string) (bool, error)
}

// Params selects where and how a response is rendered.
type Params struct {
	TargetID string
	// PageLength is the requested page size; 0 disables the pagination check.
	PageLength int
	// NextControlID names the "next page" control. Empty means DefaultNextControlID.
	NextControlID string
}

// Result describes a completed render.
type Result struct {
	TargetID     string `json:"target_id"`
	Width        int    `json:"width"`
	SeriesLength int    `json:"series_length"`
	PageLength   int    `json:"page_length,omitempty"`
	LastPage     bool   `json:"last_page"`
	ControlFound bool   `json:"control_found"`
	NextDisabled bool   `json:"next_disabled"`
}

// Render draws resp into the surface element named by p.TargetID.
//
// options.width is replaced with the element's live width before plotting.
// When p.PageLength > 0 and the first series is shorter than it, the next
// control is disabled if present; otherwise the control is left alone.
func Render(ctx context.Context, s Surface, resp *chart.ChartResponse, p Params) (Result, error) {
	if err := validate(resp, p); err != nil {
		return Result{}, err
	}
	nextID := strings.TrimSpace(p.NextControlID)
	if nextID == "" {
		nextID = DefaultNextControlID
	}

	width, err := s.ElementWidth(ctx, p.TargetID)
	if err != nil {
		return Result{}, err
	}
	if resp.Options == nil {
		resp.Options = chart.Options{}
	}
	resp.Options.SetWidth(width)

	seriesLen, hasSeries := resp.SeriesLength()
	if p.PageLength > 0 && !hasSeries {
		return Result{}, chart.NewError(chart.CodeEmptySeries, "response has no data series", nil)
	}

	if err := s.Plot(ctx, p.TargetID, resp.Options, resp.Data); err != nil {
		if chart.CodeOf(err) != "" {
			return Result{}, err
		}
		return Result{}, chart.NewError(chart.CodePlotFailed, "plot into "+p.TargetID, err)
	}

	out := Result{
		TargetID:     p.TargetID,
		Width:        width,
		SeriesLength: seriesLen,
		PageLength:   p.PageLength,
	}
	if p.PageLength > 0 && seriesLen < p.PageLength {
		out.LastPage = true
		found, err := s.DisableControl(ctx, nextID)
		if err != nil {
			return out, fmt.Errorf("disable %s: %w", nextID, err)
		}
		out.ControlFound = found
		out.NextDisabled = found
		if !found {
			slog.Debug("render next control absent", "control_id", nextID, "target_id", p.TargetID)
		}
	}

	slog.Debug("render ok",
		"target_id", p.TargetID,
		"width", width,
		"series_length", seriesLen,
		"page_length", p.PageLength,
		"next_disabled", out.NextDisabled,
	)
	return out, nil
}

func validate(resp *chart.ChartResponse, p Params) error {
	if resp == nil {
		return chart.NewError(chart.CodeValidation, "response is required", nil)
	}
	if strings.TrimSpace(p.TargetID) == "" {
		return chart.NewError(chart.CodeValidation, "target_id is required", nil)
	}
	if p.PageLength < 0 {
		return chart.NewError(chart.CodeValidation, "page_length must be positive", nil)
	}
	return nil
}
