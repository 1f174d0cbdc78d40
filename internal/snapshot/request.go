package snapshot

import (
	"strings"

	"github.com/dgnsrekt/graphview/internal/chart"
)

// Request asks for a new graph snapshot.
//
// Server snapshots fetch URI (a chart data endpoint) and plot it server-side.
// Browser snapshots open URI (a graph page) and capture the TargetID element.
type Request struct {
	Source   string `json:"source,omitempty" enum:"server,browser" doc:"server (go-chart) or browser (element capture)"`
	URI      string `json:"uri" doc:"Data URI for server snapshots, page URL for browser snapshots"`
	TargetID string `json:"target_id,omitempty" doc:"Element to capture (browser only)"`
	Width    int    `json:"width,omitempty" doc:"Image width in px (server only, default from options)"`
	Height   int    `json:"height,omitempty" doc:"Image height in px (server only, default from options)"`
	Notes    string `json:"notes,omitempty" doc:"Free-form annotation for the snapshot"`
}

// Normalize trims fields, defaults the source and validates the request.
func (r Request) Normalize() (Request, error) {
	r.Source = strings.ToLower(strings.TrimSpace(r.Source))
	r.URI = strings.TrimSpace(r.URI)
	r.TargetID = strings.TrimSpace(r.TargetID)
	r.Notes = strings.TrimSpace(r.Notes)
	if r.Source == "" {
		r.Source = SourceServer
	}

	switch {
	case r.Source != SourceServer && r.Source != SourceBrowser:
		return r, chart.NewError(chart.CodeValidation, `source must be "server" or "browser"`, nil)
	case r.URI == "":
		return r, chart.NewError(chart.CodeValidation, "uri is required", nil)
	case r.Source == SourceBrowser && r.TargetID == "":
		return r, chart.NewError(chart.CodeValidation, "target_id is required for browser snapshots", nil)
	case r.Width < 0 || r.Height < 0:
		return r, chart.NewError(chart.CodeValidation, "width and height must not be negative", nil)
	}
	return r, nil
}
