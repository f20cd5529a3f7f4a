package database

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/trade-ledger/internal/models"
)

var tradeRowColumns = []string{
	"id", "order_id", "source", "trade_date", "side", "instrument", "name",
	"price", "shares", "fee", "tax", "created_at",
}

func TestCreateTrades_Success(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}

	trades := []*models.Trade{
		newTrade("a", "2330", models.TradeTypeBuy, 1, 590, 1000),
		newTrade("b", "2330", models.TradeTypeSell, 2, 650, 500),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO trades").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	mock.ExpectQuery("INSERT INTO trades").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(102))
	mock.ExpectCommit()

	err = db.CreateTrades(trades)
	require.NoError(t, err)

	assert.Equal(t, 101, trades[0].ID)
	assert.Equal(t, 102, trades[1].ID)
	assert.False(t, trades[0].CreatedAt.IsZero())
	assert.Equal(t, trades[0].CreatedAt, trades[1].CreatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTrades_ReturnsErrorIfBeginFails(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}

	mock.ExpectBegin().WillReturnError(errors.New("begin failed"))

	err = db.CreateTrades([]*models.Trade{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTrades_RollsBackIfInsertFails(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO trades").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err = db.CreateTrades([]*models.Trade{newTrade("a", "2330", models.TradeTypeBuy, 1, 590, 1000)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create trade")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTradesByInstrument_ScansNullableColumns(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}

	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(tradeRowColumns).
		AddRow(1, "a", "manual", day, "BUY", "2330", "TSMC", "590.0000", int64(1000), "841.0000", nil, day).
		AddRow(2, "b", "manual", day, "SELL", "2330", nil, "650.0000", int64(500), nil, "975.0000", day)

	mock.ExpectQuery("SELECT (.+) FROM trades WHERE instrument = \\$1").
		WithArgs("2330").
		WillReturnRows(rows)

	trades, err := db.GetTradesByInstrument("2330")
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "TSMC", trades[0].Name)
	assert.True(t, decimal.NewFromInt(590).Equal(trades[0].Price))
	require.True(t, trades[0].Fee.Valid)
	assert.True(t, decimal.NewFromInt(841).Equal(trades[0].Fee.Decimal))
	assert.False(t, trades[0].Tax.Valid)

	assert.Equal(t, "", trades[1].Name)
	assert.False(t, trades[1].Fee.Valid)
	require.True(t, trades[1].Tax.Valid)
	assert.Equal(t, int64(500), trades[1].Shares)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAllTrades_QueryError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}

	mock.ExpectQuery("SELECT (.+) FROM trades").WillReturnError(errors.New("connection reset"))

	_, err = db.GetAllTrades()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query trades")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeExistsByOrderID_Mock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := &DB{conn: sqlDB}

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("order-1", "robinhood").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := db.TradeExistsByOrderID("order-1", "robinhood")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, mock.ExpectationsWereMet())
}
