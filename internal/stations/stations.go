// Package stations reads stop metadata from a static GTFS archive so the
// configured stop can be checked and named before the board starts.
package stations

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
)

const stopsFile = "stops.txt"

var ErrUnknownStop = errors.New("unknown stop")

type Stop struct {
	ID            string
	Name          string
	Lat           float64
	Lon           float64
	LocationType  int
	ParentStation string
}

// IsStation reports whether the stop is a parent station rather than a
// directional platform.
func (stop Stop) IsStation() bool {
	return stop.LocationType == 1 || stop.ParentStation == ""
}

type Directory struct {
	stops map[string]Stop
}

func NewDirectory(stops []Stop) *Directory {
	directory := &Directory{stops: make(map[string]Stop, len(stops))}
	for _, stop := range stops {
		directory.stops[stop.ID] = stop
	}
	return directory
}

func (directory *Directory) Len() int {
	return len(directory.stops)
}

func (directory *Directory) Lookup(stopID string) (Stop, error) {
	stop, ok := directory.stops[stopID]
	if !ok {
		return Stop{}, fmt.Errorf("%w: %q", ErrUnknownStop, stopID)
	}
	return stop, nil
}

// Search returns parent stations whose name or id contains query, ignoring
// case, sorted by name.
func (directory *Directory) Search(query string) []Stop {
	query = strings.ToLower(strings.TrimSpace(query))

	var matches []Stop
	for _, stop := range directory.stops {
		if !stop.IsStation() {
			continue
		}
		if query == "" ||
			strings.Contains(strings.ToLower(stop.Name), query) ||
			strings.Contains(strings.ToLower(stop.ID), query) {
			matches = append(matches, stop)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name == matches[j].Name {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Name < matches[j].Name
	})
	return matches
}

// LoadZip reads stops.txt straight out of a GTFS zip archive.
func LoadZip(zipPath string) (*Directory, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() || file.Name != stopsFile {
			continue
		}

		fileInArchive, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer fileInArchive.Close()

		stops, err := ReadStops(fileInArchive)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", stopsFile, err)
		}
		return NewDirectory(stops), nil
	}

	return nil, fmt.Errorf("%s not found in %s", stopsFile, zipPath)
}

// Load accepts either a local zip path or an http(s) URL to download first.
func Load(ctx context.Context, source string) (*Directory, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return LoadZip(source)
	}

	zipPath, err := DownloadToTempFile(ctx, http.DefaultClient, source)
	if err != nil {
		return nil, err
	}
	defer os.Remove(zipPath)

	return LoadZip(zipPath)
}

func ReadStops(r io.Reader) ([]Stop, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	column := map[string]int{}
	for i, header := range headers {
		column[strings.TrimPrefix(strings.TrimSpace(header), "\ufeff")] = i
	}
	if _, ok := column["stop_id"]; !ok {
		return nil, errors.New("missing stop_id column")
	}

	field := func(row []string, name string) string {
		i, ok := column[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var stops []Stop
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		stop := Stop{
			ID:            field(row, "stop_id"),
			Name:          field(row, "stop_name"),
			ParentStation: field(row, "parent_station"),
		}
		if stop.ID == "" {
			continue
		}
		stop.Lat, _ = strconv.ParseFloat(field(row, "stop_lat"), 64)
		stop.Lon, _ = strconv.ParseFloat(field(row, "stop_lon"), 64)
		stop.LocationType, _ = strconv.Atoi(field(row, "location_type"))

		stops = append(stops, stop)
	}
	return stops, nil
}

func DownloadToTempFile(ctx context.Context, client *http.Client, url string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	response, err := client.Do(request)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error downloading %s: status code %d", url, response.StatusCode)
	}

	tmpFile, err := os.CreateTemp("", "transit-board-static-*.zip")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	if _, err := io.Copy(tmpFile, response.Body); err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to write downloaded file to temp location: %w", err)
	}

	return tmpFile.Name(), nil
}
