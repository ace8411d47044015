package publish

import (
	"fmt"
	"os"
	"strconv"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/zpcg-gtfs/poller/internal/db"
)

// BuildCancellations creates a full-dataset TripUpdates feed marking each
// cancelled trip occurrence as CANCELED
func BuildCancellations(cancellations []db.Cancellation, now time.Time) *gtfsrt.FeedMessage {
	incrementality := gtfsrt.FeedHeader_FULL_DATASET
	msg := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      &incrementality,
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
	}

	for _, c := range cancellations {
		relationship := gtfsrt.TripDescriptor_CANCELED
		date := strconv.Itoa(c.Date)
		msg.Entity = append(msg.Entity, &gtfsrt.FeedEntity{
			Id: proto.String(c.TripID + ":" + date),
			TripUpdate: &gtfsrt.TripUpdate{
				Trip: &gtfsrt.TripDescriptor{
					TripId:               proto.String(c.TripID),
					RouteId:              proto.String(c.RouteID),
					StartDate:            proto.String(date),
					ScheduleRelationship: &relationship,
				},
			},
		})
	}

	return msg
}

// WriteCancellations writes the cancellation feed as a protobuf file
func WriteCancellations(path string, cancellations []db.Cancellation, now time.Time) error {
	data, err := proto.Marshal(BuildCancellations(cancellations, now))
	if err != nil {
		return fmt.Errorf("failed to encode cancellations: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cancellations: %w", err)
	}
	return nil
}
