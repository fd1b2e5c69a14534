package history

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarediiran-industries.com/transit-board/internal/arrivals"
	"tarediiran-industries.com/transit-board/internal/common"
	"tarediiran-industries.com/transit-board/internal/feed"
)

// mockStore pairs a sqlmock connection with an in-memory COPY target.
type mockStore struct {
	*sql.DB
	table   string
	columns []string
	rows    [][]any
	err     error
}

func (store *mockStore) CopyFromSlice(ctx context.Context, table string, columns []string, length int, next func(int) ([]any, error)) (int64, error) {
	if store.err != nil {
		return 0, store.err
	}
	store.table = table
	store.columns = columns
	for i := 0; i < length; i++ {
		row, err := next(i)
		if err != nil {
			return 0, err
		}
		store.rows = append(store.rows, row)
	}
	return int64(length), nil
}

func newMockStore(t *testing.T) (*mockStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &mockStore{DB: db}, mock
}

var fetchedAt = time.Date(2026, time.March, 4, 8, 30, 0, 0, time.UTC)

func testEntry() feed.Entry {
	return feed.Entry{
		FetchedAt: fetchedAt,
		Pair: arrivals.Pair{
			Uptown:   arrivals.Snapshot{Direction: arrivals.Uptown, Minutes: []int{3, 11}},
			Downtown: arrivals.Snapshot{Direction: arrivals.Downtown, Minutes: []int{7}},
		},
	}
}

func TestRecorder_Record(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO board_snapshots")).
		WithArgs("414", "R", fetchedAt).
		WillReturnRows(sqlmock.NewRows([]string{"snapshot_id"}).AddRow(int64(42)))

	registry := prometheus.NewRegistry()
	recorder := NewRecorder(store, "414", "R", nil)
	recorder.Metrics = common.NewMetrics(registry)

	require.NoError(t, recorder.Record(context.Background(), testEntry()))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, arrivalsTable, store.table)
	assert.Equal(t, ArrivalColumns(), store.columns)
	assert.Equal(t, [][]any{
		{int64(42), "uptown", 0, 3},
		{int64(42), "uptown", 1, 11},
		{int64(42), "downtown", 0, 7},
	}, store.rows)
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.Metrics.HistoryWritesTotal.WithLabelValues("success")))
}

func TestRecorder_InsertFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO board_snapshots")).
		WillReturnError(errors.New("relation does not exist"))

	registry := prometheus.NewRegistry()
	recorder := NewRecorder(store, "414", "R", nil)
	recorder.Metrics = common.NewMetrics(registry)

	err := recorder.Record(context.Background(), testEntry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), snapshotsTable)
	assert.Empty(t, store.rows)
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.Metrics.HistoryWritesTotal.WithLabelValues("failure")))
}

func TestRecorder_CopyFailure(t *testing.T) {
	store, mock := newMockStore(t)
	store.err = errors.New("copy aborted")
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO board_snapshots")).
		WillReturnRows(sqlmock.NewRows([]string{"snapshot_id"}).AddRow(int64(1)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM board_snapshots WHERE snapshot_id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewRecorder(store, "414", "R", nil).Record(context.Background(), testEntry())
	assert.ErrorIs(t, err, store.err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_CopyFailureCleanupFails(t *testing.T) {
	store, mock := newMockStore(t)
	store.err = errors.New("copy aborted")
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO board_snapshots")).
		WillReturnRows(sqlmock.NewRows([]string{"snapshot_id"}).AddRow(int64(9)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM board_snapshots")).
		WithArgs(int64(9)).
		WillReturnError(errors.New("connection reset"))

	err := NewRecorder(store, "414", "R", nil).Record(context.Background(), testEntry())
	assert.ErrorIs(t, err, store.err)
	assert.ErrorContains(t, err, "delete orphan snapshot 9")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_EnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS board_snapshots")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewRecorder(store, "414", "R", nil).EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlatten_Empty(t *testing.T) {
	assert.Empty(t, Flatten(7, arrivals.EmptyPair()))
}
