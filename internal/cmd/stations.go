package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/transit-board/internal/stations"
)

func NewStationsCmd(app *BoardCtlApp) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "stations [query]",
		Short: "Search stations in the static GTFS stops by name or id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				cfg, err := app.Config()
				if err != nil {
					return err
				}
				source = cfg.File.StaticGTFS
			}
			if source == "" {
				return errors.New("no static GTFS source: pass --gtfs or set static_gtfs")
			}

			directory, err := stations.Load(cmd.Context(), source)
			if err != nil {
				return err
			}

			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "STOP\tNAME\tLAT\tLON")
			for _, stop := range directory.Search(query) {
				fmt.Fprintf(writer, "%s\t%s\t%.6f\t%.6f\n", stop.ID, stop.Name, stop.Lat, stop.Lon)
			}
			return writer.Flush()
		},
	}

	cmd.Flags().StringVar(&source, "gtfs", "", "Static GTFS zip path or URL, overrides static_gtfs")

	return cmd
}
