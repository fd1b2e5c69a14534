package feed

import (
	"strings"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"tarediiran-industries.com/transit-board/internal/arrivals"
)

// Decode parses a raw GTFS-RT payload.
func Decode(body []byte) (*gtfs.FeedMessage, error) {
	feedMessage := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feedMessage); err != nil {
		return nil, err
	}
	return feedMessage, nil
}

// ExtractPredictions collects the stop-time updates of trips on routeID that
// call at stopID. MTA stop ids carry the direction as an N/S suffix on the
// parent id; when the suffix is absent the trip's direction_id decides.
func ExtractPredictions(feedMessage *gtfs.FeedMessage, stopID string, routeID string) []arrivals.Prediction {
	var predictions []arrivals.Prediction

	for _, entity := range feedMessage.GetEntity() {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil {
			continue
		}

		trip := tripUpdate.GetTrip()
		if !strings.EqualFold(trip.GetRouteId(), routeID) {
			continue
		}

		for _, stopTimeUpdate := range tripUpdate.GetStopTimeUpdate() {
			direction, ok := matchStop(stopTimeUpdate.GetStopId(), stopID, trip)
			if !ok {
				continue
			}

			arrivalTime := stopTimeUpdate.GetArrival().GetTime()
			if arrivalTime == 0 {
				arrivalTime = stopTimeUpdate.GetDeparture().GetTime()
			}
			if arrivalTime == 0 {
				continue
			}

			predictions = append(predictions, arrivals.Prediction{
				TripID:      trip.GetTripId(),
				RouteID:     trip.GetRouteId(),
				StopID:      stopTimeUpdate.GetStopId(),
				Direction:   direction,
				ArrivalTime: time.Unix(arrivalTime, 0),
			})
		}
	}

	return predictions
}

func matchStop(candidate string, stopID string, trip *gtfs.TripDescriptor) (arrivals.Direction, bool) {
	switch candidate {
	case stopID + "N":
		return arrivals.Uptown, true
	case stopID + "S":
		return arrivals.Downtown, true
	case stopID:
		if trip.DirectionId == nil {
			return 0, false
		}
		if trip.GetDirectionId() == 0 {
			return arrivals.Uptown, true
		}
		return arrivals.Downtown, true
	}
	return 0, false
}

// RouteCounts tallies trip updates per route id.
func RouteCounts(feedMessage *gtfs.FeedMessage) map[string]int {
	counts := map[string]int{}
	for _, entity := range feedMessage.GetEntity() {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil {
			continue
		}
		counts[tripUpdate.GetTrip().GetRouteId()]++
	}
	return counts
}
