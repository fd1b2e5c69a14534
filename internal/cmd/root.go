package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/transit-board/internal/board"
	"tarediiran-industries.com/transit-board/internal/common"
	"tarediiran-industries.com/transit-board/internal/feed"
)

type BoardCtlApp struct {
	ConfigPath string
	EnvPath    string
	StopID     string
	RouteID    string
}

func Execute() error {
	app := &BoardCtlApp{}
	rootCmd := NewRootCmd(app)
	return rootCmd.Execute()
}

func NewRootCmd(app *BoardCtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "board-ctl",
		Short:         "CLI tool used to inspect the arrivals board feed, stops and frames",
		Version:       fmt.Sprintf("%s (%s)", common.Version, common.GitCommit),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "toml", "", "Path to board configuration file (.toml, .yaml or .yml)")
	cmd.PersistentFlags().StringVar(&app.EnvPath, "env", ".env", "Optional dotenv file")
	cmd.PersistentFlags().StringVar(&app.StopID, "stop", "", "Stop id, overrides the configuration file")
	cmd.PersistentFlags().StringVar(&app.RouteID, "route", "", "Route id, overrides the configuration file")

	cmd.AddCommand(NewArrivalsCmd(app))
	cmd.AddCommand(NewTripsCmd(app))
	cmd.AddCommand(NewRoutesCmd(app))
	cmd.AddCommand(NewProbeCmd(app))
	cmd.AddCommand(NewStationsCmd(app))
	cmd.AddCommand(NewRenderCmd(app))
	cmd.AddCommand(NewHealthCmd(app))

	return cmd
}

// Config resolves the board configuration exactly as transit-board would.
func (app *BoardCtlApp) Config() (board.Config, error) {
	args := []string{"-env", app.EnvPath}
	if app.ConfigPath != "" {
		args = append(args, "-toml", app.ConfigPath)
	}
	if app.StopID != "" {
		args = append(args, "-stop", app.StopID)
	}
	if app.RouteID != "" {
		args = append(args, "-route", app.RouteID)
	}

	var errOut bytes.Buffer
	cfg, err := board.ParseArgs("board-ctl", args, &errOut)
	if err != nil {
		return board.Config{}, err
	}
	return cfg, nil
}

func (app *BoardCtlApp) Client() (*feed.Client, board.Config, error) {
	cfg, err := app.Config()
	if err != nil {
		return nil, board.Config{}, err
	}

	client := feed.NewClient(cfg.StopConfig(), feed.ClientOptions{
		Timeout:  cfg.SchedulerOptions().FetchTimeout,
		Arrivals: cfg.ArrivalOptions(),
	})
	return client, cfg, nil
}
