// Package history persists every refreshed arrivals snapshot to Postgres so
// countdown accuracy can be inspected later.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tarediiran-industries.com/transit-board/internal/arrivals"
	"tarediiran-industries.com/transit-board/internal/common"
	database "tarediiran-industries.com/transit-board/internal/db"
	"tarediiran-industries.com/transit-board/internal/feed"
)

//go:embed schema.sql
var schema string

const (
	snapshotsTable = "board_snapshots"
	arrivalsTable  = "board_arrivals"

	insertSnapshot = `INSERT INTO board_snapshots (stop_id, route_id, fetched_at) VALUES ($1, $2, $3) RETURNING snapshot_id`
	deleteSnapshot = `DELETE FROM board_snapshots WHERE snapshot_id = $1`
)

type Store interface {
	database.CopyCapable
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type ArrivalRecord struct {
	SnapshotId int64
	Direction  arrivals.Direction
	Position   int
	Minutes    int
}

func ArrivalColumns() []string {
	return []string{"snapshot_id", "direction", "position", "minutes"}
}

func (record *ArrivalRecord) ToAnyArray() []any {
	return []any{
		record.SnapshotId,
		record.Direction.String(),
		record.Position,
		record.Minutes,
	}
}

type Recorder struct {
	Store   Store
	StopID  string
	RouteID string
	Metrics *common.Metrics

	log *logrus.Entry
}

func NewRecorder(store Store, stopID, routeID string, log *logrus.Logger) *Recorder {
	if log == nil {
		log = common.DiscardLogger()
	}
	return &Recorder{
		Store:   store,
		StopID:  stopID,
		RouteID: routeID,
		log:     log.WithField("component", "history"),
	}
}

// EnsureSchema creates the history tables when they are missing.
func (recorder *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := recorder.Store.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

func (recorder *Recorder) Record(ctx context.Context, entry feed.Entry) error {
	err := recorder.record(ctx, entry)
	if recorder.Metrics != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		recorder.Metrics.HistoryWritesTotal.WithLabelValues(result).Inc()
	}
	return err
}

func (recorder *Recorder) record(ctx context.Context, entry feed.Entry) error {
	var snapshotId int64
	err := recorder.Store.
		QueryRowContext(ctx, insertSnapshot, recorder.StopID, recorder.RouteID, entry.FetchedAt.UTC()).
		Scan(&snapshotId)
	if err != nil {
		return fmt.Errorf("insert %s: %w", snapshotsTable, err)
	}

	records := Flatten(snapshotId, entry.Pair)
	copied, err := recorder.Store.CopyFromSlice(
		ctx,
		arrivalsTable,
		ArrivalColumns(),
		len(records),
		func(i int) ([]any, error) {
			return records[i].ToAnyArray(), nil
		},
	)
	if err != nil {
		// The snapshot row and its arrivals travel on different connections,
		// so a failed copy removes the row it would have filled.
		if _, deleteErr := recorder.Store.ExecContext(ctx, deleteSnapshot, snapshotId); deleteErr != nil {
			return errors.Join(err, fmt.Errorf("delete orphan snapshot %d: %w", snapshotId, deleteErr))
		}
		return err
	}

	recorder.log.WithFields(logrus.Fields{
		"snapshot_id": snapshotId,
		"rows":        copied,
		"fetched_at":  entry.FetchedAt.Format(time.RFC3339),
	}).Debug("Recorded snapshot")
	return nil
}

// Flatten lists the countdowns of both directions, uptown first, in display
// order.
func Flatten(snapshotId int64, pair arrivals.Pair) []ArrivalRecord {
	records := make([]ArrivalRecord, 0, pair.Uptown.Len()+pair.Downtown.Len())
	for _, snapshot := range []arrivals.Snapshot{pair.Uptown, pair.Downtown} {
		for position, minutes := range snapshot.Minutes {
			records = append(records, ArrivalRecord{
				SnapshotId: snapshotId,
				Direction:  snapshot.Direction,
				Position:   position,
				Minutes:    minutes,
			})
		}
	}
	return records
}
