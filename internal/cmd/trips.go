package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func NewTripsCmd(app *BoardCtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trips",
		Short: "List every raw prediction for the configured stop and route",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := app.Client()
			if err != nil {
				return err
			}

			predictions, err := client.Predictions(cmd.Context())
			if err != nil {
				return err
			}
			sort.Slice(predictions, func(i, j int) bool {
				return predictions[i].ArrivalTime.Before(predictions[j].ArrivalTime)
			})

			now := time.Now()
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "TRIP\tROUTE\tSTOP\tDIRECTION\tARRIVAL\tIN")
			for _, prediction := range predictions {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
					prediction.TripID,
					prediction.RouteID,
					prediction.StopID,
					prediction.Direction,
					prediction.ArrivalTime.Local().Format("15:04:05"),
					prediction.ArrivalTime.Sub(now).Round(time.Second),
				)
			}
			return writer.Flush()
		},
	}

	return cmd
}
