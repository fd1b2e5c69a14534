package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/transit-board/internal/feed"
)

func NewRoutesCmd(app *BoardCtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Count trip updates per route in the configured feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := app.Client()
			if err != nil {
				return err
			}

			message, err := client.SampleEndpoint(cmd.Context())
			if err != nil {
				return err
			}

			counts := feed.RouteCounts(message)
			routes := make([]string, 0, len(counts))
			for route := range counts {
				routes = append(routes, route)
			}
			sort.Strings(routes)

			out := cmd.OutOrStdout()
			for _, route := range routes {
				fmt.Fprintf(out, "%-6s %d\n", route, counts[route])
			}
			return nil
		},
	}

	return cmd
}
