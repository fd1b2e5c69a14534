package board

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tarediiran-industries.com/transit-board/internal/arrivals"
	"tarediiran-industries.com/transit-board/internal/common"
	"tarediiran-industries.com/transit-board/internal/feed"
	"tarediiran-industries.com/transit-board/internal/render"
	"tarediiran-industries.com/transit-board/internal/scheduler"
)

const (
	EnvAPIKey   = "MTA_API_KEY"
	EnvLogLevel = "LOG_LEVEL"
)

// ConfigFile is the on-disk configuration, TOML or YAML. Zero values fall
// back to the defaults below.
type ConfigFile struct {
	StopID      string `toml:"stop_id" yaml:"stop_id" validate:"required"`
	RouteID     string `toml:"route_id" yaml:"route_id" validate:"required"`
	FeedBaseURL string `toml:"feed_base_url" yaml:"feed_base_url" validate:"omitempty,url"`
	FeedPath    string `toml:"feed_path" yaml:"feed_path"`
	APIKey      string `toml:"api_key" yaml:"api_key"`

	DwellSeconds      float64  `toml:"dwell_seconds" yaml:"dwell_seconds" validate:"gte=0"`
	DisplayFPS        int      `toml:"display_fps" yaml:"display_fps" validate:"gte=0,lte=240"`
	TopK              int      `toml:"top_k" yaml:"top_k" validate:"gte=0,lte=10"`
	RefreshSeconds    float64  `toml:"refresh_seconds" yaml:"refresh_seconds" validate:"gte=0"`
	RetrySeconds      float64  `toml:"retry_seconds" yaml:"retry_seconds" validate:"gte=0"`
	GraceSeconds      *float64 `toml:"grace_seconds" yaml:"grace_seconds" validate:"omitempty,gte=0"`
	TimeoutSeconds    float64  `toml:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`
	StaleAfterSeconds *float64 `toml:"stale_after_seconds" yaml:"stale_after_seconds" validate:"omitempty,gte=0"`

	Width         int    `toml:"width" yaml:"width" validate:"gte=0"`
	Height        int    `toml:"height" yaml:"height" validate:"gte=0"`
	UptownLabel   string `toml:"uptown_label" yaml:"uptown_label"`
	DowntownLabel string `toml:"downtown_label" yaml:"downtown_label"`
	OutputDir     string `toml:"output_dir" yaml:"output_dir"`

	PreviewAddr   string `toml:"preview_addr" yaml:"preview_addr"`
	TelemetryAddr string `toml:"telemetry_addr" yaml:"telemetry_addr"`
	Database      string `toml:"database" yaml:"database"`
	StaticGTFS    string `toml:"static_gtfs" yaml:"static_gtfs"`

	LogLevel  string `toml:"log_level" yaml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	LogFormat string `toml:"log_format" yaml:"log_format" validate:"omitempty,oneof=text json"`
}

type Config struct {
	Version    bool
	ConfigPath string
	EnvPath    string

	File ConfigFile
}

// LoadConfigFile picks the decoder from the file extension.
func LoadConfigFile(path string) (ConfigFile, error) {
	var cfg ConfigFile

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return ConfigFile{}, err
		}
	case ".yaml", ".yml":
		file, err := os.Open(path)
		if err != nil {
			return ConfigFile{}, err
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return ConfigFile{}, err
		}
	default:
		return ConfigFile{}, fmt.Errorf("unsupported config format %q (want .toml, .yaml or .yml)", filepath.Ext(path))
	}

	return cfg, nil
}

// loadEnv reads a dotenv file if present and applies environment overrides.
func loadEnv(path string, cfg *ConfigFile) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("godotenv: %w", err)
		}
	}

	if key := os.Getenv(EnvAPIKey); key != "" {
		cfg.APIKey = key
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	return nil
}

func ParseArgs(programName string, args []string, errOut io.Writer) (Config, error) {
	var cfg Config
	var flagStop, flagRoute, flagFeedPath, flagOutput, flagPreview string

	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errOut)

	fs.Usage = func() {
		fmt.Fprintf(errOut, "Usage: %s [options]\n\n", programName)
		fmt.Fprintln(errOut, "Options")
		fs.PrintDefaults()
	}

	fs.BoolVar(&cfg.Version, "version", false, "Prints CLI version")
	fs.StringVar(&cfg.ConfigPath, "toml", "", "Configuration file (.toml, .yaml or .yml)")
	fs.StringVar(&cfg.EnvPath, "env", ".env", "Optional dotenv file read before environment overrides")

	fs.StringVar(&flagStop, "stop", "", "Stop id without direction suffix, overrides stop_id")
	fs.StringVar(&flagRoute, "route", "", "Route id, overrides route_id")
	fs.StringVar(&flagFeedPath, "feed", "", "Feed path or URL, overrides feed_path")
	fs.StringVar(&flagOutput, "output", "", "Directory for PNG frames, overrides output_dir")
	fs.StringVar(&flagPreview, "preview", "", "Preview server listen address, overrides preview_addr")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Version {
		fmt.Fprintf(errOut, "%s: version %s (%s)\n", programName, common.Version, common.GitCommit)
		return cfg, flag.ErrHelp
	}

	if cfg.ConfigPath != "" {
		file, err := LoadConfigFile(cfg.ConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("LoadConfigFile: %w", err)
		}
		cfg.File = file
	}

	overrides := []struct {
		value  string
		target *string
	}{
		{flagStop, &cfg.File.StopID},
		{flagRoute, &cfg.File.RouteID},
		{flagFeedPath, &cfg.File.FeedPath},
		{flagOutput, &cfg.File.OutputDir},
		{flagPreview, &cfg.File.PreviewAddr},
	}
	for _, override := range overrides {
		if override.value != "" {
			*override.target = override.value
		}
	}

	if err := loadEnv(cfg.EnvPath, &cfg.File); err != nil {
		return Config{}, err
	}

	if cfg.File.FeedPath == "" {
		if path, ok := feed.PathForRoute(cfg.File.RouteID); ok {
			cfg.File.FeedPath = path
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

var validate = validator.New()

func (cfg Config) Validate() error {
	if err := validate.Struct(cfg.File); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.StopConfig().Validate(); err != nil {
		return err
	}
	if err := cfg.SchedulerOptions().Validate(); err != nil {
		return err
	}
	renderer, err := render.NewMatrixRenderer(cfg.Layout())
	if err != nil {
		return err
	}
	if topK := cfg.ArrivalOptions().TopK; topK > renderer.MaxRows() {
		layout := renderer.Layout()
		return fmt.Errorf("top_k %d does not fit a %dx%d display, at most %d rows", topK, layout.Width, layout.Height, renderer.MaxRows())
	}
	return nil
}

func seconds(value float64, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value * float64(time.Second))
}

func (cfg Config) StopConfig() feed.StopConfig {
	return feed.StopConfig{
		StopID:  strings.TrimSpace(cfg.File.StopID),
		RouteID: strings.TrimSpace(cfg.File.RouteID),
		BaseURL: cfg.File.FeedBaseURL,
		Path:    cfg.File.FeedPath,
		APIKey:  cfg.File.APIKey,
	}
}

func (cfg Config) ArrivalOptions() arrivals.Options {
	options := arrivals.DefaultOptions()
	if cfg.File.TopK > 0 {
		options.TopK = cfg.File.TopK
	}
	if cfg.File.GraceSeconds != nil {
		options.Grace = time.Duration(*cfg.File.GraceSeconds * float64(time.Second))
	}
	return options
}

func (cfg Config) SchedulerOptions() scheduler.Options {
	options := scheduler.DefaultOptions()
	options.Dwell = seconds(cfg.File.DwellSeconds, options.Dwell)
	options.Refresh = seconds(cfg.File.RefreshSeconds, options.Refresh)
	options.RetryDelay = seconds(cfg.File.RetrySeconds, options.RetryDelay)
	options.FetchTimeout = seconds(cfg.File.TimeoutSeconds, options.FetchTimeout)
	if cfg.File.StaleAfterSeconds != nil {
		options.StaleAfter = time.Duration(*cfg.File.StaleAfterSeconds * float64(time.Second))
	}
	if cfg.File.DisplayFPS > 0 {
		options.FrameInterval = time.Second / time.Duration(cfg.File.DisplayFPS)
	}
	options.Route = strings.TrimSpace(cfg.File.RouteID)
	return options
}

func (cfg Config) Layout() render.Layout {
	layout := render.DefaultLayout()
	if cfg.File.Width > 0 {
		layout.Width = cfg.File.Width
	}
	if cfg.File.Height > 0 {
		layout.Height = cfg.File.Height
	}
	if cfg.File.UptownLabel != "" {
		layout.UptownLabel = cfg.File.UptownLabel
	}
	if cfg.File.DowntownLabel != "" {
		layout.DowntownLabel = cfg.File.DowntownLabel
	}
	return layout
}

func Main(programName string, args []string, out, errOut io.Writer) int {
	cfg, err := ParseArgs(programName, args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(errOut, "Error:", err)
		return -1
	}

	return Run(cfg, out, errOut)
}
