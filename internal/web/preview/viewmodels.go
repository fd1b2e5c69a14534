package preview

import (
	"fmt"
	"time"

	"tarediiran-industries.com/transit-board/internal/arrivals"
	"tarediiran-industries.com/transit-board/internal/feed"
	"tarediiran-industries.com/transit-board/internal/render"
)

type BoardPageVM struct {
	Title          string
	Route          string
	RefreshSeconds int
	FrameWidth     int
	Directions     []DirectionVM
	UpdatedAt      string
	Stale          bool
}

type DirectionVM struct {
	Label      string
	Countdowns []string
}

// StatusVM is the /status payload.
type StatusVM struct {
	StopID     string            `json:"stop_id"`
	StopName   string            `json:"stop_name,omitempty"`
	RouteID    string            `json:"route_id"`
	HasData    bool              `json:"has_data"`
	FetchedAt  *time.Time        `json:"fetched_at,omitempty"`
	AgeSeconds float64           `json:"age_seconds"`
	Stale      bool              `json:"stale"`
	Uptown     []int             `json:"uptown"`
	Downtown   []int             `json:"downtown"`
	Showing    string            `json:"showing,omitempty"`
	Labels     map[string]string `json:"labels"`
}

func BuildStatusVM(settings Settings, entry feed.Entry, ok bool, showing *render.Frame, now time.Time) StatusVM {
	status := StatusVM{
		StopID:   settings.StopID,
		StopName: settings.StopName,
		RouteID:  settings.RouteID,
		HasData:  ok,
		Uptown:   []int{},
		Downtown: []int{},
		Labels: map[string]string{
			arrivals.Uptown.String():   settings.Layout.Label(arrivals.Uptown),
			arrivals.Downtown.String(): settings.Layout.Label(arrivals.Downtown),
		},
	}
	if showing != nil {
		status.Showing = showing.Direction.String()
	}
	if !ok {
		return status
	}

	fetchedAt := entry.FetchedAt
	age := entry.Age(now)
	status.FetchedAt = &fetchedAt
	status.AgeSeconds = age.Seconds()
	status.Stale = settings.StaleAfter > 0 && age > settings.StaleAfter
	status.Uptown = append(status.Uptown, entry.Pair.Uptown.Minutes...)
	status.Downtown = append(status.Downtown, entry.Pair.Downtown.Minutes...)
	return status
}

func BuildBoardPageVM(settings Settings, status StatusVM, now time.Time) BoardPageVM {
	title := fmt.Sprintf("%s at %s", settings.RouteID, settings.StopID)
	if settings.StopName != "" {
		title = fmt.Sprintf("%s at %s", settings.RouteID, settings.StopName)
	}

	page := BoardPageVM{
		Title:          title,
		Route:          settings.RouteID,
		RefreshSeconds: settings.PageRefreshSeconds,
		FrameWidth:     settings.Layout.Width * 8,
		Stale:          status.Stale,
		UpdatedAt:      "never",
		Directions: []DirectionVM{
			{Label: status.Labels[arrivals.Uptown.String()], Countdowns: formatAll(status.Uptown)},
			{Label: status.Labels[arrivals.Downtown.String()], Countdowns: formatAll(status.Downtown)},
		},
	}
	if page.RefreshSeconds <= 0 {
		page.RefreshSeconds = 2
	}
	if status.FetchedAt != nil {
		page.UpdatedAt = formatAge(now, *status.FetchedAt)
	}
	return page
}

func formatAll(minutes []int) []string {
	out := make([]string, 0, len(minutes))
	for _, m := range minutes {
		out = append(out, render.FormatCountdown(m))
	}
	return out
}

func formatAge(now, then time.Time) string {
	d := now.Sub(then)
	if d < 0 {
		d = 0
	}
	if d < 10*time.Second {
		return "just now"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm ago", int(d.Minutes()))
}
