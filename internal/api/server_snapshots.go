package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/graphview/internal/snapshot"
)

func snapshotOp(id, method, path, summary string) huma.Operation {
	return huma.Operation{OperationID: id, Method: method, Path: path, Summary: summary, Tags: []string{"Snapshots"}}
}

func snapshotImageURL(id string) string { return "/api/v1/snapshots/" + id + "/image" }

type snapshotIDInput struct {
	SnapshotID string `path:"snapshot_id" doc:"Snapshot UUID"`
}

type snapshotView struct {
	snapshot.SnapshotMeta
	ImageURL string `json:"image_url"`
}

func viewOf(meta snapshot.SnapshotMeta) snapshotView {
	return snapshotView{SnapshotMeta: meta, ImageURL: snapshotImageURL(meta.ID)}
}

func registerSnapshotHandlers(api huma.API, svc Service) {
	type takeOutput struct {
		Body struct {
			Snapshot snapshot.SnapshotMeta `json:"snapshot"`
			URL      string                `json:"url"`
		}
	}
	huma.Register(api, snapshotOp("take-snapshot", http.MethodPost, "/api/v1/snapshots", "Render a graph to an image and store it"),
		func(ctx context.Context, input *struct{ Body snapshot.Request }) (*takeOutput, error) {
			meta, err := svc.TakeSnapshot(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &takeOutput{}
			out.Body.Snapshot, out.Body.URL = meta, snapshotImageURL(meta.ID)
			return out, nil
		})

	type listOutput struct {
		Body struct {
			Snapshots []snapshotView `json:"snapshots"`
		}
	}
	huma.Register(api, snapshotOp("list-snapshots", http.MethodGet, "/api/v1/snapshots", "List stored snapshots, newest first"),
		func(ctx context.Context, input *struct {
			Limit int `query:"limit" minimum:"0" doc:"Return at most this many; 0 means all"`
		}) (*listOutput, error) {
			metas, err := svc.ListSnapshots(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			if input.Limit > 0 && len(metas) > input.Limit {
				metas = metas[:input.Limit]
			}
			out := &listOutput{}
			out.Body.Snapshots = make([]snapshotView, 0, len(metas))
			for _, m := range metas {
				out.Body.Snapshots = append(out.Body.Snapshots, viewOf(m))
			}
			return out, nil
		})

	huma.Register(api, snapshotOp("get-snapshot", http.MethodGet, "/api/v1/snapshots/{snapshot_id}", "Get snapshot metadata"),
		func(ctx context.Context, input *snapshotIDInput) (*struct{ Body snapshotView }, error) {
			meta, err := svc.GetSnapshot(ctx, input.SnapshotID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &struct{ Body snapshotView }{Body: viewOf(meta)}, nil
		})

	type imageOutput struct {
		ContentType  string `header:"Content-Type"`
		CacheControl string `header:"Cache-Control"`
		Body         []byte
	}
	huma.Register(api, snapshotOp("get-snapshot-image", http.MethodGet, "/api/v1/snapshots/{snapshot_id}/image", "Download the snapshot image"),
		func(ctx context.Context, input *snapshotIDInput) (*imageOutput, error) {
			data, format, err := svc.ReadSnapshotImage(ctx, input.SnapshotID)
			if err != nil {
				return nil, mapErr(err)
			}
			// Snapshot ids are never reused, so the bytes behind one never change.
			return &imageOutput{ContentType: "image/" + format, CacheControl: "private, max-age=86400, immutable", Body: data}, nil
		})

	huma.Register(api, snapshotOp("delete-snapshot", http.MethodDelete, "/api/v1/snapshots/{snapshot_id}", "Delete a snapshot"),
		func(ctx context.Context, input *snapshotIDInput) (*struct{}, error) {
			if err := svc.DeleteSnapshot(ctx, input.SnapshotID); err != nil {
				return nil, mapErr(err)
			}
			return nil, nil
		})
}
