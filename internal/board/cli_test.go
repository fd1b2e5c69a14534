package board

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"tarediiran-industries.com/transit-board/internal/arrivals"
	"tarediiran-industries.com/transit-board/internal/common"
	"tarediiran-industries.com/transit-board/internal/render"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// parse isolates tests from the developer's environment and .env file.
func parse(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvLogLevel, "")
	return ParseArgs("transit-board", append([]string{"-env", ""}, args...), &bytes.Buffer{})
}

func TestParseArgs_Toml(t *testing.T) {
	path := writeFile(t, "board.toml", `
stop_id = "414"
route_id = "R"
dwell_seconds = 7.5
display_fps = 20
top_k = 3
grace_seconds = 0
refresh_seconds = 15
stale_after_seconds = 0
width = 128
height = 48
uptown_label = "MANHATTAN"
log_format = "json"
`)

	cfg, err := parse(t, "-toml", path)
	require.NoError(t, err)

	stop := cfg.StopConfig()
	assert.Equal(t, "414", stop.StopID)
	assert.Equal(t, "gtfs-nqrw", stop.Path, "feed path derived from the route")

	options := cfg.SchedulerOptions()
	assert.Equal(t, 7500*time.Millisecond, options.Dwell)
	assert.Equal(t, 50*time.Millisecond, options.FrameInterval)
	assert.Equal(t, 15*time.Second, options.Refresh)
	assert.Equal(t, 2*time.Second, options.RetryDelay)
	assert.Zero(t, options.StaleAfter, "explicit zero disables the stale flag")
	assert.Equal(t, "R", options.Route)

	arrivalOptions := cfg.ArrivalOptions()
	assert.Equal(t, 3, arrivalOptions.TopK)
	assert.Zero(t, arrivalOptions.Grace, "explicit zero grace is kept")

	layout := cfg.Layout()
	assert.Equal(t, 128, layout.Width)
	assert.Equal(t, 48, layout.Height)
	assert.Equal(t, "MANHATTAN", layout.Label(arrivals.Uptown))
	assert.Equal(t, "DOWNTOWN", layout.Label(arrivals.Downtown))
}

func TestParseArgs_YamlAndDefaults(t *testing.T) {
	path := writeFile(t, "board.yaml", "stop_id: \"101\"\nroute_id: \"1\"\nfeed_path: gtfs\n")

	cfg, err := parse(t, "-toml", path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.SchedulerOptions().Dwell)
	assert.Equal(t, 2*time.Minute, cfg.SchedulerOptions().StaleAfter)
	assert.Equal(t, arrivals.DefaultOptions(), cfg.ArrivalOptions())
	assert.Equal(t, render.DefaultLayout(), cfg.Layout())
}

func TestParseArgs_YamlRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "board.yml", "stop_id: \"101\"\nroute_id: \"1\"\nstop_name: nope\n")

	_, err := parse(t, "-toml", path)
	assert.Error(t, err)
}

func TestParseArgs_FlagsAndEnvironment(t *testing.T) {
	envPath := writeFile(t, "board.env", "MTA_API_KEY=from-dotenv\n")
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvLogLevel, "DEBUG")
	os.Unsetenv(EnvAPIKey)

	cfg, err := ParseArgs("transit-board", []string{"-env", envPath, "-stop", "R16", "-route", "N"}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.StopConfig().APIKey)
	assert.Equal(t, "debug", cfg.File.LogLevel)
	assert.Equal(t, "R16", cfg.File.StopID)
	assert.Equal(t, "gtfs-nqrw", cfg.File.FeedPath)
}

func TestParseArgs_EnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "board.toml", "stop_id = \"414\"\nroute_id = \"R\"\napi_key = \"from-file\"\n")
	t.Setenv(EnvAPIKey, "from-env")

	cfg, err := ParseArgs("transit-board", []string{"-env", "", "-toml", path}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.File.APIKey)
}

func TestParseArgs_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"missing stop":       "route_id = \"R\"\n",
		"unknown feed route": "stop_id = \"414\"\nroute_id = \"X9\"\n",
		"bad log format":     "stop_id = \"414\"\nroute_id = \"R\"\nlog_format = \"xml\"\n",
		"negative dwell":     "stop_id = \"414\"\nroute_id = \"R\"\ndwell_seconds = -1\n",
		"bad base url":       "stop_id = \"414\"\nroute_id = \"R\"\nfeed_base_url = \"not a url\"\n",
		"tiny display":       "stop_id = \"414\"\nroute_id = \"R\"\nwidth = 8\nheight = 8\n",
		"top_k over rows":    "stop_id = \"414\"\nroute_id = \"R\"\ntop_k = 3\n",
	}

	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parse(t, "-toml", writeFile(t, "board.toml", contents))
			assert.Error(t, err)
		})
	}

	_, err := parse(t, "-toml", writeFile(t, "board.json", "{}"))
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestParseArgs_TopKMustFitDisplay(t *testing.T) {
	_, err := parse(t, "-toml", writeFile(t, "board.toml", "stop_id = \"414\"\nroute_id = \"R\"\ntop_k = 4\n"))
	assert.ErrorContains(t, err, "top_k 4 does not fit a 64x32 display, at most 2 rows")

	cfg, err := parse(t, "-toml", writeFile(t, "board.toml", "stop_id = \"414\"\nroute_id = \"R\"\ntop_k = 4\nheight = 64\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.ArrivalOptions().TopK)
}

func TestParseArgs_Version(t *testing.T) {
	var errOut bytes.Buffer
	_, err := ParseArgs("transit-board", []string{"-version"}, &errOut)
	assert.True(t, errors.Is(err, flag.ErrHelp))
	assert.Contains(t, errOut.String(), common.Version)

	assert.Equal(t, 0, Main("transit-board", []string{"-version"}, &bytes.Buffer{}, &bytes.Buffer{}))
}

func TestMain_ConfigError(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	var errOut bytes.Buffer
	assert.Equal(t, -1, Main("transit-board", []string{"-env", ""}, &bytes.Buffer{}, &errOut))
	assert.Contains(t, errOut.String(), "Error:")
}

func TestRunBoard_WritesFrames(t *testing.T) {
	body, err := proto.Marshal(&gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: []*gtfs.FeedEntity{{
			Id: proto.String("1"),
			TripUpdate: &gtfs.TripUpdate{
				Trip: &gtfs.TripDescriptor{TripId: proto.String("R..S"), RouteId: proto.String("R")},
				StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{{
					StopId:  proto.String("414S"),
					Arrival: &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(time.Now().Add(4 * time.Minute).Unix())},
				}},
			},
		}},
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var apiKeys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		apiKeys = append(apiKeys, r.Header.Get("x-api-key"))
		mu.Unlock()
		_, _ = w.Write(body)
	}))
	defer server.Close()

	output := t.TempDir()
	cfg := Config{File: ConfigFile{
		StopID:      "414",
		RouteID:     "R",
		FeedBaseURL: server.URL,
		FeedPath:    "gtfs-nqrw",
		APIKey:      "secret",
		OutputDir:   output,
	}}
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, RunBoard(ctx, cfg, common.DiscardLogger()))

	_, err = os.Stat(filepath.Join(output, "board_uptown.png"))
	assert.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, apiKeys)
	assert.Equal(t, "secret", apiKeys[0])
}

func TestRunBoard_DatabaseFailureStartsNoListener(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	cfg := Config{File: ConfigFile{
		StopID:      "414",
		RouteID:     "R",
		FeedPath:    "gtfs-nqrw",
		PreviewAddr: addr,
		Database:    "postgres://board@127.0.0.1:1/board?sslmode=disable&connect_timeout=1",
	}}

	require.Error(t, RunBoard(context.Background(), cfg, common.DiscardLogger()))

	listener, err = net.Listen("tcp", addr)
	require.NoError(t, err, "preview address must still be free")
	require.NoError(t, listener.Close())
}

func TestRunBoard_UnknownStaticStop(t *testing.T) {
	cfg := Config{File: ConfigFile{
		StopID:     "414",
		RouteID:    "R",
		FeedPath:   "gtfs-nqrw",
		StaticGTFS: filepath.Join(t.TempDir(), "missing.zip"),
	}}

	err := RunBoard(context.Background(), cfg, common.DiscardLogger())
	assert.ErrorContains(t, err, "static GTFS")
}
