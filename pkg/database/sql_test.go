package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLQuerier_DollarBinding(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT site_id FROM readings WHERE site_id = \$1 AND timestamp >= \$2 AND note = '@skip' AND site_id = \$1`).
		WithArgs(7, from).
		WillReturnRows(sqlmock.NewRows([]string{"site_id", "label"}).
			AddRow(int64(7), []byte("north wing")))

	q := NewSQLQuerier(db, BindDollar)
	rows, err := q.Query(context.Background(),
		"SELECT site_id FROM readings WHERE site_id = @siteId AND timestamp >= @from AND note = '@skip' AND site_id = @siteId",
		map[string]any{"siteId": 7, "from": from}, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0]["site_id"])
	assert.Equal(t, "north wing", rows[0]["label"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQuerier_MaxRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	result := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 10; i++ {
		result.AddRow(i)
	}
	mock.ExpectQuery("SELECT n FROM t").WillReturnRows(result)

	rows, err := NewSQLQuerier(db, BindNamed).Query(context.Background(), "SELECT n FROM t", nil, QueryOptions{MaxRows: 3})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSQLQuerier_NamedBinding(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT avg\(temperature\) AS avg_temp FROM readings WHERE site_id = @siteId`).
		WithArgs(sql.Named("siteId", 7)).
		WillReturnRows(sqlmock.NewRows([]string{"avg_temp"}).AddRow(21.3))

	rows, err := NewSQLQuerier(db, BindNamed).Query(context.Background(),
		"SELECT avg(temperature) AS avg_temp FROM readings WHERE site_id = @siteId",
		map[string]any{"siteId": 7}, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"avg_temp": 21.3}}, rows)
}

func TestSQLQuerier_QueryErrorPassesThrough(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT bogus").WillReturnError(errors.New("column bogus does not exist"))

	_, err = NewSQLQuerier(db, BindDollar).Query(context.Background(), "SELECT bogus", nil, QueryOptions{})
	require.EqualError(t, err, "column bogus does not exist")
}

func TestSQLQuerier_ReadOnlyTxPreparesInsideReadOnlyTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectPrepare(`SELECT avg\(temperature\) AS avg_temp FROM readings WHERE site_id = \$1`).
		ExpectQuery().
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"avg_temp"}).AddRow(21.3))
	mock.ExpectRollback()

	q := NewSQLQuerier(db, BindDollar, ReadOnlyTx())
	rows, err := q.Query(context.Background(),
		"SELECT avg(temperature) AS avg_temp FROM readings WHERE site_id = @siteId",
		map[string]any{"siteId": 7}, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"avg_temp": 21.3}}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQuerier_ReadOnlyTxRefusedStatementRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	refused := &pq.Error{Code: "42601", Message: "cannot insert multiple commands into a prepared statement"}
	mock.ExpectBegin()
	mock.ExpectPrepare("SELECT 1; DROP TABLE readings").WillReturnError(refused)
	mock.ExpectRollback()

	_, err = NewSQLQuerier(db, BindDollar, ReadOnlyTx()).Query(context.Background(),
		"SELECT 1; DROP TABLE readings", nil, QueryOptions{})
	require.Error(t, err)
	assert.True(t, IsQueryRejected(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQuerier_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	require.NoError(t, NewSQLQuerier(db, BindDollar).Ping(context.Background()))
}

func TestIsQueryRejected(t *testing.T) {
	assert.False(t, IsQueryRejected(nil))
	assert.False(t, IsQueryRejected(errors.New("dial tcp: connection refused")))
	assert.True(t, IsQueryRejected(&pq.Error{Code: "42703", Message: "column does not exist"}))
	assert.False(t, IsQueryRejected(&pq.Error{Code: "57P01", Message: "admin shutdown"}))
}

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 5, 1, 13, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "2024-05-01T11:00:00Z", normalizeValue(ts))
	assert.Equal(t, "abc", normalizeValue([]byte("abc")))
	assert.Equal(t, 1.5, normalizeValue(1.5))
}

func TestParseClickHouseAddrs(t *testing.T) {
	assert.Equal(t, []string{"a:9000", "b:9000"}, ParseClickHouseAddrs(" a:9000, ,b:9000 "))
	assert.Nil(t, ParseClickHouseAddrs(""))
}
