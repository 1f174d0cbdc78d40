package series

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// dimSampleRows bounds the rows scanned to build filter choices.
const dimSampleRows = 10000

// GraphRequest is the input of a graph fragment render.
type GraphRequest struct {
	Collection string
	Label      string
	Column     string
	// Page comes from the route; ui.page in Params wins when present.
	Page   int
	Params url.Values
	// ActiveElement is the value of the control that triggered the request:
	// "next" moves forward, any other non-empty value moves back.
	ActiveElement string
}

// UIState is the pagination state carried through hidden inputs.
type UIState struct {
	Page    int    `json:"page"`
	Start   string `json:"start,omitempty"`
	Stop    string `json:"stop,omitempty"`
	PageLen int    `json:"page_len"`
}

// FilterInput is one dim selector on the graph page.
type FilterInput struct {
	Name     string   `json:"name"`
	Selected string   `json:"selected"`
	Values   []string `json:"values"`
}

// GraphView is everything a graph fragment needs.
type GraphView struct {
	Collection  string        `json:"collection"`
	Label       string        `json:"label"`
	Column      string        `json:"column"`
	URI         string        `json:"uri"`
	GraphID     string        `json:"graph_id"`
	UI          UIState       `json:"ui"`
	Inputs      []FilterInput `json:"inputs,omitempty"`
	ShowFilters bool          `json:"show_filters"`
}

// Graph resolves pagination and filter state into a data URI for the loader.
func (r *Reader) Graph(ctx context.Context, req GraphRequest) (GraphView, error) {
	schema, err := r.store.Schema(ctx, req.Collection)
	if err != nil {
		return GraphView{}, err
	}

	var inputs []FilterInput
	if len(schema.Dims) > 0 {
		rows, err := r.store.Frame(ctx, FrameQuery{Collection: req.Collection, Label: req.Label, Limit: dimSampleRows})
		if err != nil {
			return GraphView{}, err
		}
		for _, dim := range schema.Dims {
			inputs = append(inputs, FilterInput{
				Name:     dim,
				Selected: req.Params.Get(dim),
				Values:   distinctValues(rows, dim),
			})
		}
	} else if _, err := r.store.Frame(ctx, FrameQuery{Collection: req.Collection, Label: req.Label, Limit: 1}); err != nil {
		return GraphView{}, err
	}

	ui := UIState{
		Page:    req.Page,
		Start:   req.Params.Get("ui.start"),
		Stop:    req.Params.Get("ui.stop"),
		PageLen: r.pageLen,
	}
	if v := req.Params.Get("ui.page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			ui.Page = n
		}
	}
	ui.Page = NextPage(ui.Page, req.ActiveElement)

	return GraphView{
		Collection:  req.Collection,
		Label:       req.Label,
		Column:      req.Column,
		URI:         r.dataURI(req, ui, inputs),
		GraphID:     NewGraphID(),
		UI:          ui,
		Inputs:      inputs,
		ShowFilters: ui.Start != "" || ui.Stop != "",
	}, nil
}

// NextPage applies a pagination button press. The page never drops below 0.
func NextPage(page int, active string) int {
	switch {
	case active == "":
	case active == "next":
		page++
	default:
		page--
	}
	if page < 0 {
		page = 0
	}
	return page
}

// NewGraphID returns a fresh element id of the form graph-xxxxxxxx.
func NewGraphID() string {
	return "graph-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (r *Reader) dataURI(req GraphRequest, ui UIState, inputs []FilterInput) string {
	uri := r.prefix + "/read/" + url.PathEscape(req.Collection) + "/" + url.PathEscape(req.Label) + "/" + url.PathEscape(req.Column)

	var args []string
	if ui.Page > 0 {
		args = append(args, "ui.page="+strconv.Itoa(ui.Page))
	}
	if ui.Start != "" {
		args = append(args, "ui.start="+url.QueryEscape(ui.Start))
	}
	if ui.Stop != "" {
		args = append(args, "ui.stop="+url.QueryEscape(ui.Stop))
	}
	for _, in := range inputs {
		if in.Selected != "" {
			args = append(args, url.QueryEscape(in.Name)+"="+url.QueryEscape(in.Selected))
		}
	}
	if len(args) > 0 {
		uri += "?" + strings.Join(args, "&")
	}
	return uri
}

func distinctValues(rows []Point, dim string) []string {
	set := make(map[string]struct{})
	for _, p := range rows {
		set[p.Dims[dim]] = struct{}{}
	}
	delete(set, "")
	vals := make([]string, 0, len(set))
	for v := range set {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return append([]string{""}, vals...)
}
