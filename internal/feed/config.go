package feed

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2F"
	DefaultTimeout = 10 * time.Second
	APIKeyHeader   = "x-api-key"
)

// StopConfig identifies what the client fetches and filters for. It is built
// once at startup and only ever passed by value.
type StopConfig struct {
	StopID  string
	RouteID string
	BaseURL string
	Path    string
	APIKey  string
}

// URL joins the base URL and feed path. A path that is already an absolute
// http(s) URL is used as is.
func (cfg StopConfig) URL() string {
	if strings.HasPrefix(cfg.Path, "http://") || strings.HasPrefix(cfg.Path, "https://") {
		return cfg.Path
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.HasSuffix(base, "/") || strings.HasSuffix(base, "%2F") {
		return base + strings.TrimPrefix(cfg.Path, "/")
	}
	return base + "/" + strings.TrimPrefix(cfg.Path, "/")
}

func (cfg StopConfig) Validate() error {
	if strings.TrimSpace(cfg.StopID) == "" {
		return fmt.Errorf("Missing required argument: stop_id")
	}
	if strings.TrimSpace(cfg.RouteID) == "" {
		return fmt.Errorf("Missing required argument: route_id")
	}
	if cfg.Path == "" {
		return fmt.Errorf("Missing required argument: feed_path")
	}
	return nil
}

var routeFeedPaths = map[string]string{
	"A": "gtfs-ace", "C": "gtfs-ace", "E": "gtfs-ace", "H": "gtfs-ace", "FS": "gtfs-ace",
	"B": "gtfs-bdfm", "D": "gtfs-bdfm", "F": "gtfs-bdfm", "M": "gtfs-bdfm",
	"G": "gtfs-g",
	"J": "gtfs-jz", "Z": "gtfs-jz",
	"N": "gtfs-nqrw", "Q": "gtfs-nqrw", "R": "gtfs-nqrw", "W": "gtfs-nqrw",
	"L": "gtfs-l",
	"SI": "gtfs-si", "SIR": "gtfs-si",
	"1": "gtfs", "2": "gtfs", "3": "gtfs", "4": "gtfs", "5": "gtfs", "6": "gtfs", "7": "gtfs", "GS": "gtfs",
}

// PathForRoute returns the MTA feed path that carries routeID.
func PathForRoute(routeID string) (string, bool) {
	path, ok := routeFeedPaths[strings.ToUpper(strings.TrimSpace(routeID))]
	return path, ok
}
