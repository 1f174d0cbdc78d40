package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/dgnsrekt/graphview/internal/chart"
)

// Fetcher issues the single GET a load performs and decodes the payload.
type Fetcher struct {
	client  *resty.Client
	timeout time.Duration
}

// NewFetcher wraps client. A nil client gets resty defaults. timeout <= 0
// leaves the request bounded only by the caller's context.
func NewFetcher(client *resty.Client, timeout time.Duration) *Fetcher {
	if client == nil {
		client = resty.New()
	}
	client.SetHeader("Accept", "application/json")
	return &Fetcher{client: client, timeout: timeout}
}

// Fetch GETs uri verbatim and decodes a ChartResponse.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (*chart.ChartResponse, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, chart.NewError(chart.CodeValidation, "uri is required", nil)
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	resp, err := f.client.R().SetContext(ctx).Get(uri)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, chart.NewError(chart.CodeFetchFailed, "GET "+uri, err)
	}
	if !resp.IsSuccess() {
		return nil, chart.NewError(chart.CodeFetchFailed, fmt.Sprintf("GET %s: status %d", uri, resp.StatusCode()), nil)
	}
	return Decode(resp.Body())
}

// Decode parses a payload that must be an object carrying an options object
// and a data array.
func Decode(body []byte) (*chart.ChartResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, chart.NewError(chart.CodeDecodeFailed, "response is not valid JSON", nil)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, chart.NewError(chart.CodeDecodeFailed, "response is not a JSON object", nil)
	}
	if opts := root.Get("options"); !opts.IsObject() {
		return nil, chart.NewError(chart.CodeDecodeFailed, "response options is not an object", nil)
	}
	if data := root.Get("data"); !data.IsArray() {
		return nil, chart.NewError(chart.CodeDecodeFailed, "response data is not an array", nil)
	}

	var out chart.ChartResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, chart.NewError(chart.CodeDecodeFailed, "decode response", err)
	}
	return &out, nil
}
