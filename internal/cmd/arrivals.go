package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/transit-board/internal/arrivals"
	"tarediiran-industries.com/transit-board/internal/render"
)

func NewArrivalsCmd(app *BoardCtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arrivals",
		Short: "Fetch the feed once and print the countdowns the board would show",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := app.Client()
			if err != nil {
				return err
			}

			pair, err := client.Fetch(cmd.Context())
			if err != nil {
				return err
			}

			layout := cfg.Layout()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s at %s\n", cfg.StopConfig().RouteID, cfg.StopConfig().StopID)
			for _, direction := range []arrivals.Direction{arrivals.Uptown, arrivals.Downtown} {
				fmt.Fprintf(out, "  %-10s %s\n", layout.Label(direction), formatMinutes(pair.Get(direction).Minutes))
			}
			return nil
		},
	}

	return cmd
}

func formatMinutes(minutes []int) string {
	if len(minutes) == 0 {
		return "--"
	}
	parts := make([]string, len(minutes))
	for i, m := range minutes {
		parts[i] = render.FormatCountdown(m)
	}
	return strings.Join(parts, " ")
}
