package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/graphview/internal/loader"
	"github.com/dgnsrekt/graphview/internal/plot"
)

func newRenderCmd() *cobra.Command {
	var width, height int
	var out string
	var png bool

	cmd := &cobra.Command{
		Use:   "render <chart.json>",
		Short: "Render a saved chart page to SVG or PNG offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read chart: %w", err)
			}
			resp, err := loader.Decode(raw)
			if err != nil {
				return err
			}
			options := resp.Options.Clone()
			if width > 0 {
				options.SetWidth(width)
			}
			if height > 0 {
				options["height"] = height
			}

			p := plot.New()
			var img []byte
			if png {
				img, err = p.PNG(options, resp.Data)
			} else {
				img, err = p.SVG(options, resp.Data)
			}
			if err != nil {
				return err
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(img)
				return err
			}
			if err := os.WriteFile(out, img, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			length, _ := resp.SeriesLength()
			printSummary(cmd.OutOrStdout(), "chart rendered", []field{
				{"series", len(resp.Data)},
				{"points", length},
				{"bytes", len(img)},
				{"output", out},
			})
			return nil
		},
	}

	cmd.Flags().IntVar(&width, "width", 0, "Override options.width")
	cmd.Flags().IntVar(&height, "height", 0, "Override options.height")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the image here instead of stdout")
	cmd.Flags().BoolVar(&png, "png", false, "Render PNG instead of SVG")

	return cmd
}
