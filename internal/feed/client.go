package feed

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/sirupsen/logrus"

	"tarediiran-industries.com/transit-board/internal/arrivals"
	"tarediiran-industries.com/transit-board/internal/common"
)

const endpointLabel = "feed"

type ClientOptions struct {
	Timeout  time.Duration
	Arrivals arrivals.Options
	Metrics  *common.Metrics
	Logger   *logrus.Logger
	Now      func() time.Time
}

// Client fetches the configured feed and keeps the last good snapshot pair.
// It never retries; callers decide when to try again.
type Client struct {
	Stop   StopConfig
	Client *http.Client

	options ClientOptions
	cache   *Cache
	log     *logrus.Entry
}

func NewClient(stop StopConfig, options ClientOptions) *Client {
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.Logger == nil {
		options.Logger = common.DiscardLogger()
	}

	return &Client{
		Stop:    stop,
		Client:  &http.Client{Timeout: options.Timeout},
		options: options,
		cache:   NewCache(),
		log: options.Logger.WithFields(logrus.Fields{
			"component": "feed",
			"stop":      stop.StopID,
			"route":     stop.RouteID,
		}),
	}
}

// Cache exposes the client's last-good cache for read-only use.
func (client *Client) Cache() *Cache {
	return client.cache
}

// SampleEndpoint performs the GET and decodes the payload without touching
// the cache.
func (client *Client) SampleEndpoint(ctx context.Context) (*gtfs.FeedMessage, error) {
	url := client.Stop.URL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, client.fail(&FetchError{Kind: KindNetwork, URL: url, Err: err})
	}
	if client.Stop.APIKey != "" {
		req.Header.Set(APIKeyHeader, client.Stop.APIKey)
	}

	start := time.Now()
	resp, err := client.Client.Do(req)
	if err != nil {
		return nil, client.fail(&FetchError{Kind: KindNetwork, URL: url, Err: err})
	}
	defer func() { _ = resp.Body.Close() }()
	client.observe(func(metrics *common.Metrics) {
		metrics.HttpTTFBSeconds.WithLabelValues(endpointLabel).Observe(time.Since(start).Seconds())
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, client.fail(&FetchError{Kind: KindHTTP, StatusCode: resp.StatusCode, URL: url})
	}

	readStart := time.Now()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, client.fail(&FetchError{Kind: KindNetwork, URL: url, Err: err})
	}
	client.observe(func(metrics *common.Metrics) {
		metrics.HttpReadBodySeconds.WithLabelValues(endpointLabel).Observe(time.Since(readStart).Seconds())
		metrics.HttpBytesTotal.WithLabelValues(endpointLabel).Add(float64(len(body)))
	})

	feedMessage, err := Decode(body)
	if err != nil {
		return nil, client.fail(&FetchError{Kind: KindDecode, URL: url, Err: err})
	}

	return feedMessage, nil
}

// Predictions fetches the feed and returns the raw predictions for the
// configured stop and route.
func (client *Client) Predictions(ctx context.Context) ([]arrivals.Prediction, error) {
	feedMessage, err := client.SampleEndpoint(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractPredictions(feedMessage, client.Stop.StopID, client.Stop.RouteID), nil
}

// Fetch returns fresh uptown/downtown snapshots and replaces the cache. An
// empty pair is a valid result and is cached like any other.
func (client *Client) Fetch(ctx context.Context) (arrivals.Pair, error) {
	predictions, err := client.Predictions(ctx)
	if err != nil {
		return arrivals.Pair{}, err
	}

	now := client.options.Now()
	pair := arrivals.BuildPair(now, predictions, client.options.Arrivals)
	entry := client.cache.store(pair, now)

	client.log.WithFields(logrus.Fields{
		"predictions": len(predictions),
		"uptown":      entry.Pair.Uptown.Minutes,
		"downtown":    entry.Pair.Downtown.Minutes,
	}).Debug("Fetched feed")

	return entry.Pair, nil
}

func (client *Client) fail(fetchError *FetchError) error {
	client.observe(func(metrics *common.Metrics) {
		metrics.HttpErrorsTotal.WithLabelValues(endpointLabel, fetchError.Kind.String()).Inc()
	})
	return fetchError
}

func (client *Client) observe(record func(*common.Metrics)) {
	if client.options.Metrics != nil {
		record(client.options.Metrics)
	}
}
