package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/graphview/internal/series"
)

func registerSeriesHandlers(api huma.API, svc Service) {
	type listCollectionsOutput struct {
		Body struct {
			Collections []series.Collection `json:"collections"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-collections", Method: http.MethodGet, Path: "/api/v1/collections", Summary: "List collections with schema and labels", Tags: []string{"Series"}},
		func(ctx context.Context, input *struct{}) (*listCollectionsOutput, error) {
			collections, err := svc.ListCollections(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listCollectionsOutput{}
			out.Body.Collections = collections
			if out.Body.Collections == nil {
				out.Body.Collections = []series.Collection{}
			}
			return out, nil
		})

	type searchOutput struct {
		Body struct {
			Labels []string `json:"labels"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "search-labels", Method: http.MethodGet, Path: "/api/v1/search", Summary: "Search series labels", Tags: []string{"Series"}},
		func(ctx context.Context, input *struct {
			Query string `query:"q" doc:"Whitespace-separated, case-insensitive substrings"`
		}) (*searchOutput, error) {
			labels, err := svc.SearchLabels(ctx, input.Query)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &searchOutput{}
			out.Body.Labels = labels
			if out.Body.Labels == nil {
				out.Body.Labels = []string{}
			}
			return out, nil
		})

	type summaryOutput struct {
		Body series.Summary
	}
	huma.Register(api, huma.Operation{OperationID: "series-summary", Method: http.MethodGet, Path: "/api/v1/series/{collection}/{label}/{column}/summary", Summary: "Summarize one page of a series column", Tags: []string{"Series"}},
		func(ctx context.Context, input *struct {
			Collection string `path:"collection"`
			Label      string `path:"label"`
			Column     string `path:"column"`
			Page       int    `query:"page" minimum:"0"`
			Start      string `query:"start" doc:"Inclusive lower bound, unix seconds or RFC 3339"`
			Stop       string `query:"stop" doc:"Inclusive upper bound, unix seconds or RFC 3339"`
		}) (*summaryOutput, error) {
			sum, err := svc.SeriesSummary(ctx, series.ReadQuery{
				Collection: input.Collection,
				Label:      input.Label,
				Column:     input.Column,
				Page:       input.Page,
				Start:      input.Start,
				Stop:       input.Stop,
			})
			if err != nil {
				return nil, mapErr(err)
			}
			out := &summaryOutput{}
			out.Body = sum
			return out, nil
		})
}
