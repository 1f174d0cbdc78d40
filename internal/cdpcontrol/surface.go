package cdpcontrol

import (
	"context"

	"github.com/dgnsrekt/graphview/internal/chart"
)

// TabSurface renders into one browser tab. It satisfies render.Surface.
type TabSurface struct {
	client *Client
	tabID  string
}

func (s *TabSurface) TabID() string { return s.tabID }

func (s *TabSurface) ElementWidth(ctx context.Context, id string) (int, error) {
	var out struct {
		Width int `json:"width"`
	}
	if err := s.client.evalOnTab(ctx, s.tabID, jsElementWidth(id), &out); err != nil {
		return 0, err
	}
	return out.Width, nil
}

func (s *TabSurface) Plot(ctx context.Context, id string, options chart.Options, data []chart.Series) error {
	return s.client.evalOnTab(ctx, s.tabID, jsPlot(id, options, data), nil)
}

func (s *TabSurface) DisableControl(ctx context.Context, id string) (bool, error) {
	var out struct {
		Found bool `json:"found"`
	}
	if err := s.client.evalOnTab(ctx, s.tabID, jsDisableControl(id), &out); err != nil {
		return false, err
	}
	return out.Found, nil
}
