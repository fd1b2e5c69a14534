package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/transit-board/internal/arrivals"
	"tarediiran-industries.com/transit-board/internal/render"
)

func NewRenderCmd(app *BoardCtlApp) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Fetch once and write both direction frames as PNG files",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := app.Client()
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = cfg.File.OutputDir
			}
			if outputDir == "" {
				outputDir = "."
			}

			renderer, err := render.NewMatrixRenderer(cfg.Layout())
			if err != nil {
				return err
			}
			sink, err := render.NewFileSink(outputDir)
			if err != nil {
				return err
			}
			defer sink.Close()

			pair, fetchErr := client.Fetch(cmd.Context())
			if fetchErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "fetch failed, rendering without data: %v\n", fetchErr)
			}

			for _, direction := range []arrivals.Direction{arrivals.Uptown, arrivals.Downtown} {
				frame, err := renderer.Render(render.View{
					Direction: direction,
					Route:     cfg.StopConfig().RouteID,
					Minutes:   pair.Get(direction).Minutes,
					HasData:   fetchErr == nil,
				})
				if err != nil {
					return err
				}
				if err := sink.Push(frame); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sink.Path(direction))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "out", "", "Output directory, overrides output_dir")

	return cmd
}
