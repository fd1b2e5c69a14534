package feed

import (
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

var epoch = time.Date(2026, time.March, 4, 8, 30, 0, 0, time.UTC)

type stopTime struct {
	stopID    string
	arrival   time.Time
	departure time.Time
}

func tripEntity(tripID string, routeID string, stops ...stopTime) *gtfs.FeedEntity {
	updates := make([]*gtfs.TripUpdate_StopTimeUpdate, 0, len(stops))
	for _, stop := range stops {
		update := &gtfs.TripUpdate_StopTimeUpdate{StopId: proto.String(stop.stopID)}
		if !stop.arrival.IsZero() {
			update.Arrival = &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(stop.arrival.Unix())}
		}
		if !stop.departure.IsZero() {
			update.Departure = &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(stop.departure.Unix())}
		}
		updates = append(updates, update)
	}

	return &gtfs.FeedEntity{
		Id: proto.String(tripID),
		TripUpdate: &gtfs.TripUpdate{
			Trip: &gtfs.TripDescriptor{
				TripId:  proto.String(tripID),
				RouteId: proto.String(routeID),
			},
			StopTimeUpdate: updates,
		},
	}
}

func feedMessage(entities ...*gtfs.FeedEntity) *gtfs.FeedMessage {
	return &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(epoch.Unix())),
		},
		Entity: entities,
	}
}

func marshalFeed(t *testing.T, message *gtfs.FeedMessage) []byte {
	t.Helper()
	body, err := proto.Marshal(message)
	require.NoError(t, err)
	return body
}

// scenarioFeed has two uptown R trains at +3 and +11 minutes and one
// downtown R train at +7 minutes at stop 414, plus noise.
func scenarioFeed() *gtfs.FeedMessage {
	return feedMessage(
		tripEntity("R..N01", "R",
			stopTime{stopID: "413N", arrival: epoch.Add(1 * time.Minute)},
			stopTime{stopID: "414N", arrival: epoch.Add(3 * time.Minute)},
		),
		tripEntity("R..N02", "R", stopTime{stopID: "414N", arrival: epoch.Add(11 * time.Minute)}),
		tripEntity("R..S01", "R", stopTime{stopID: "414S", arrival: epoch.Add(7 * time.Minute)}),
		tripEntity("N..N01", "N", stopTime{stopID: "414N", arrival: epoch.Add(2 * time.Minute)}),
		tripEntity("R..S02", "R", stopTime{stopID: "415S", arrival: epoch.Add(4 * time.Minute)}),
	)
}
