package common

import (
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Metrics struct {
	HttpTTFBSeconds     *prometheus.HistogramVec
	HttpReadBodySeconds *prometheus.HistogramVec
	HttpBytesTotal      *prometheus.CounterVec
	HttpErrorsTotal     *prometheus.CounterVec

	FetchesTotal       *prometheus.CounterVec
	FramesTotal        *prometheus.CounterVec
	FrameErrorsTotal   *prometheus.CounterVec
	DirectionSwitches  prometheus.Counter
	CacheAgeSeconds    prometheus.Gauge
	SnapshotArrivals   *prometheus.GaugeVec
	HistoryWritesTotal *prometheus.CounterVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		HttpTTFBSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "board_http_ttfb_seconds",
				Help:    "Time from feed GET to first byte",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		HttpReadBodySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "board_http_read_body_seconds",
				Help:    "Time to read the body of a GTFS-RT feed response",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		HttpBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_http_bytes_total",
				Help: "Bytes downloaded per endpoint",
			},
			[]string{"endpoint"},
		),
		HttpErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_http_errors_total",
				Help: "Feed fetch failures per endpoint and failure kind",
			},
			[]string{"endpoint", "kind"},
		),
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_fetches_total",
				Help: "Feed fetch attempts made by the frame scheduler",
			},
			[]string{"result"},
		),
		FramesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_frames_total",
				Help: "Frames pushed to the render sink",
			},
			[]string{"direction"},
		),
		FrameErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_frame_errors_total",
				Help: "Ticks abandoned because rendering or the sink failed",
			},
			[]string{"stage"},
		),
		DirectionSwitches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "board_direction_switches_total",
				Help: "Dwell transitions between uptown and downtown",
			},
		),
		CacheAgeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "board_cache_age_seconds",
				Help: "Age of the last successfully fetched snapshot",
			},
		),
		SnapshotArrivals: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "board_snapshot_arrivals",
				Help: "Arrivals held in the cached snapshot per direction",
			},
			[]string{"direction"},
		),
		HistoryWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_history_writes_total",
				Help: "Snapshot history inserts",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		metrics.HttpTTFBSeconds,
		metrics.HttpReadBodySeconds,
		metrics.HttpBytesTotal,
		metrics.HttpErrorsTotal,
		metrics.FetchesTotal,
		metrics.FramesTotal,
		metrics.FrameErrorsTotal,
		metrics.DirectionSwitches,
		metrics.CacheAgeSeconds,
		metrics.SnapshotArrivals,
		metrics.HistoryWritesTotal,
	)

	return metrics
}

type TelemetryServer struct {
	addr     string
	mux      *http.ServeMux
	registry *prometheus.Registry
	log      *logrus.Entry

	server   *http.Server
	listener net.Listener
}

func NewTelemetryServer(addr string, log *logrus.Logger) *TelemetryServer {
	telemetry := &TelemetryServer{
		addr:     addr,
		registry: prometheus.NewRegistry(),
		mux:      http.NewServeMux(),
		log:      log.WithField("component", "telemetry"),
	}

	telemetry.mux.Handle(
		"/metrics",
		promhttp.HandlerFor(telemetry.registry, promhttp.HandlerOpts{}),
	)

	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "board_build_info",
			Help: "Build metadata",
		},
		[]string{"version", "git_commit"},
	)

	telemetry.registry.MustRegister(
		collectors.NewGoCollector(), // Go runtime metrics
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
	)

	buildInfo.WithLabelValues(Version, GitCommit).Set(1)

	telemetry.mux.HandleFunc("/debug/pprof/", pprof.Index)
	telemetry.mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	telemetry.mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	telemetry.mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	telemetry.mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return telemetry
}

func (telemetry *TelemetryServer) GetRegistry() *prometheus.Registry {
	return telemetry.registry
}

func (telemetry *TelemetryServer) Handler() http.Handler {
	return telemetry.mux
}

func (telemetry *TelemetryServer) Start() error {
	telemetry.server = &http.Server{
		Addr:              telemetry.addr,
		Handler:           telemetry.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", telemetry.addr)
	if err != nil {
		return err
	}

	telemetry.listener = listener

	go telemetry.server.Serve(telemetry.listener)

	telemetry.log.WithField("addr", listener.Addr().String()).Info("Telemetry server started")
	return nil
}

func (telemetry *TelemetryServer) Stop() error {
	if telemetry.server == nil {
		return nil
	}

	return telemetry.server.Close()
}
