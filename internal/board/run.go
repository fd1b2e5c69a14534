// Package board wires the arrivals board together: configuration, the feed
// client, renderer, sinks and the frame scheduler.
package board

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tarediiran-industries.com/transit-board/internal/common"
	database "tarediiran-industries.com/transit-board/internal/db"
	"tarediiran-industries.com/transit-board/internal/feed"
	"tarediiran-industries.com/transit-board/internal/history"
	"tarediiran-industries.com/transit-board/internal/render"
	"tarediiran-industries.com/transit-board/internal/scheduler"
	"tarediiran-industries.com/transit-board/internal/stations"
	"tarediiran-industries.com/transit-board/internal/web/preview"
)

func Run(cfg Config, out, errOut io.Writer) int {
	log, err := common.NewLogger(errOut, cfg.File.LogLevel, cfg.File.LogFormat)
	if err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return -1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RunBoard(ctx, cfg, log); err != nil {
		log.WithError(err).Error("Board stopped")
		return 1
	}

	log.Info("Finished.")
	return 0
}

// RunBoard blocks until ctx is cancelled or a component fails to start.
func RunBoard(ctx context.Context, cfg Config, log *logrus.Logger) error {
	stop := cfg.StopConfig()
	boardLog := log.WithFields(logrus.Fields{"stop": stop.StopID, "route": stop.RouteID})

	stopName, err := resolveStopName(ctx, cfg, boardLog)
	if err != nil {
		return err
	}

	var metrics *common.Metrics
	if cfg.File.TelemetryAddr != "" {
		telemetry := common.NewTelemetryServer(cfg.File.TelemetryAddr, log)
		metrics = common.NewMetrics(telemetry.GetRegistry())
		if err := telemetry.Start(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer telemetry.Stop()
	}

	schedulerOptions := cfg.SchedulerOptions()
	client := feed.NewClient(stop, feed.ClientOptions{
		Timeout:  schedulerOptions.FetchTimeout,
		Arrivals: cfg.ArrivalOptions(),
		Metrics:  metrics,
		Logger:   log,
	})

	layout := cfg.Layout()
	renderer, err := render.NewMatrixRenderer(layout)
	if err != nil {
		return err
	}

	var sinks render.MultiSink
	if cfg.File.OutputDir != "" {
		fileSink, err := render.NewFileSink(cfg.File.OutputDir)
		if err != nil {
			return fmt.Errorf("file sink: %w", err)
		}
		sinks = append(sinks, fileSink)
	}

	var server *preview.PreviewServer
	if cfg.File.PreviewAddr != "" {
		frames := render.NewPreviewSink()
		sinks = append(sinks, frames)

		server, err = preview.NewPreviewServer(cfg.File.PreviewAddr, preview.Settings{
			StopID:     stop.StopID,
			StopName:   stopName,
			RouteID:    stop.RouteID,
			Layout:     layout,
			StaleAfter: schedulerOptions.StaleAfter,
		}, client.Cache(), frames, log)
		if err != nil {
			return err
		}
	}

	if len(sinks) == 0 {
		boardLog.Warn("No output configured, frames are rendered and discarded")
	}
	defer sinks.Close()

	frameScheduler, err := scheduler.NewScheduler(client, client.Cache(), renderer, sinks, schedulerOptions, log)
	if err != nil {
		return err
	}
	frameScheduler.Metrics = metrics

	if cfg.File.Database != "" {
		db, err := database.NewDatabaseConnection(ctx, cfg.File.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		recorder := history.NewRecorder(db, stop.StopID, stop.RouteID, log)
		recorder.Metrics = metrics
		if err := recorder.EnsureSchema(ctx); err != nil {
			return err
		}
		frameScheduler.Recorder = recorder
	}

	boardLog.WithFields(logrus.Fields{
		"name": stopName,
		"feed": stop.URL(),
	}).Info("Starting arrivals board")

	// Listeners start only once nothing else can fail.
	group, groupCtx := errgroup.WithContext(ctx)
	if server != nil {
		group.Go(func() error { return server.Serve(groupCtx) })
	}
	group.Go(func() error { return frameScheduler.Run(groupCtx) })
	return group.Wait()
}

func resolveStopName(ctx context.Context, cfg Config, log *logrus.Entry) (string, error) {
	if cfg.File.StaticGTFS == "" {
		return "", nil
	}

	benchmark := common.NewBenchmarker(log, "load-static-stops")
	directory, err := stations.Load(ctx, cfg.File.StaticGTFS)
	benchmark.Close()
	if err != nil {
		return "", fmt.Errorf("static GTFS: %w", err)
	}

	station, err := directory.Lookup(cfg.StopConfig().StopID)
	if err != nil {
		return "", err
	}
	return station.Name, nil
}
