package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/graphview/internal/cdpcontrol"
	"github.com/dgnsrekt/graphview/internal/loader"
	"github.com/dgnsrekt/graphview/internal/render"
)

func registerGraphHandlers(api huma.API, svc Service) {
	type listTabsOutput struct {
		Body struct {
			Tabs []cdpcontrol.TabInfo `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List graph tabs open in the browser", Tags: []string{"Graphs"}},
		func(ctx context.Context, input *struct{}) (*listTabsOutput, error) {
			tabs, err := svc.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listTabsOutput{}
			out.Body.Tabs = tabs
			if out.Body.Tabs == nil {
				out.Body.Tabs = []cdpcontrol.TabInfo{}
			}
			return out, nil
		})

	type loadGraphOutput struct {
		Body render.Result
	}
	huma.Register(api, huma.Operation{
		OperationID: "load-graph",
		Method:      http.MethodPost,
		Path:        "/api/v1/graphs/load",
		Summary:     "Fetch a chart page and render it into a tab element",
		Description: "Fetches uri once, overwrites options.width with the element's width and plots the data. With page_length > 0 the next control is disabled when the first series is shorter than a page. A newer load for the same tab and target supersedes this one (409).",
		Tags:        []string{"Graphs"},
	}, func(ctx context.Context, input *struct {
		Body struct {
			URI           string `json:"uri" doc:"Chart data URI, absolute or relative to this server"`
			TabID         string `json:"tab_id" doc:"Browser tab to render into"`
			TargetID      string `json:"target_id" doc:"Element id of the plot container"`
			PageLength    int    `json:"page_length,omitempty" minimum:"0" doc:"Expected page size; 0 disables the last-page check"`
			NextControlID string `json:"next_control_id,omitempty" doc:"Control to disable on the last page (default next-btn)"`
		}
	}) (*loadGraphOutput, error) {
		res, err := svc.LoadGraph(ctx, input.Body.TabID, loader.Request{
			URI:           input.Body.URI,
			TargetID:      input.Body.TargetID,
			PageLength:    input.Body.PageLength,
			NextControlID: input.Body.NextControlID,
		})
		if err != nil {
			return nil, mapErr(err)
		}
		out := &loadGraphOutput{}
		out.Body = res
		return out, nil
	})
}
