package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/graphview/internal/dom"
	"github.com/dgnsrekt/graphview/internal/loader"
	"github.com/dgnsrekt/graphview/internal/plot"
	"github.com/dgnsrekt/graphview/internal/render"
)

// defaultPage is the document used when --html is not given.
const defaultPage = `<!doctype html>
<html><body>
<div id="graph" style="width: 900px"></div>
<button id="next-btn">next</button>
</body></html>`

type loadOptions struct {
	htmlFile      string
	targetID      string
	pageLength    int
	nextControlID string
	out           string
	timeout       time.Duration
}

func newLoadCmd() *cobra.Command {
	var opts loadOptions

	cmd := &cobra.Command{
		Use:   "load <uri>",
		Short: "Fetch a chart page and render it into an HTML document",
		Long: `Fetch a chart page ({options, data}) and draw it into an element of an
HTML document, disabling the next control when the page is short.

Example: graphctl load http://127.0.0.1:8190/read/weather/paris/temperature --page-len 500 --out graph.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.htmlFile, "html", "", "HTML document to render into (default: a page with #graph and #next-btn)")
	cmd.Flags().StringVar(&opts.targetID, "target", "graph", "Id of the element to draw into")
	cmd.Flags().IntVar(&opts.pageLength, "page-len", 0, "Expected page length; 0 disables the last-page check")
	cmd.Flags().StringVar(&opts.nextControlID, "next-control", render.DefaultNextControlID, "Id of the control disabled on the last page")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the rendered document here instead of stdout")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Fetch timeout")

	return cmd
}

func runLoad(ctx context.Context, cmd *cobra.Command, uri string, opts loadOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	page := defaultPage
	if opts.htmlFile != "" {
		raw, err := os.ReadFile(opts.htmlFile)
		if err != nil {
			return fmt.Errorf("read html: %w", err)
		}
		page = string(raw)
	}

	doc, err := dom.ParseString(page, plot.New(), 0)
	if err != nil {
		return err
	}
	l := loader.New(doc, loader.WithFetcher(loader.NewFetcher(nil, opts.timeout)))
	res, err := l.LoadGraph(ctx, loader.Request{
		URI:           uri,
		TargetID:      opts.targetID,
		PageLength:    opts.pageLength,
		NextControlID: opts.nextControlID,
	})
	if err != nil {
		return err
	}

	html, err := doc.HTML()
	if err != nil {
		return err
	}
	if opts.out == "" {
		fmt.Fprintln(cmd.OutOrStdout(), html)
		return nil
	}
	if err := os.WriteFile(opts.out, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	printSummary(cmd.OutOrStdout(), "graph loaded", []field{
		{"target", res.TargetID},
		{"width", res.Width},
		{"series length", res.SeriesLength},
		{"last page", res.LastPage},
		{"next disabled", res.NextDisabled},
		{"output", opts.out},
	})
	return nil
}
