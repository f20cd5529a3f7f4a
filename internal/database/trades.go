package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/trade-ledger/internal/models"
)

const tradeColumns = `id, order_id, source, trade_date, side, instrument, name,
		       price, shares, fee, tax, created_at`

const insertTradeQuery = `
		INSERT INTO trades (
			order_id, source, trade_date, side, instrument, name,
			price, shares, fee, tax, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		RETURNING id
	`

// queryRower is satisfied by both *sql.DB and *sql.Tx
type queryRower interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

// CreateTrade inserts a new trade record
func (db *DB) CreateTrade(t *models.Trade) error {
	return insertTrade(db.conn, t, time.Now())
}

// CreateTrades inserts trades in a single transaction
func (db *DB) CreateTrades(trades []*models.Trade) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, t := range trades {
		if err := insertTrade(tx, t, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trades: %w", err)
	}
	return nil
}

func insertTrade(q queryRower, t *models.Trade, now time.Time) error {
	var name sql.NullString
	if t.Name != "" {
		name = sql.NullString{String: t.Name, Valid: true}
	}

	err := q.QueryRow(insertTradeQuery,
		t.OrderID, t.Source, t.TradeDate, t.Side, t.Instrument, name,
		t.Price, t.Shares, t.Fee, t.Tax, now,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	t.CreatedAt = now
	return nil
}

// TradeExistsByOrderID checks if a trade with the given order_id and source already exists
func (db *DB) TradeExistsByOrderID(orderID, source string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM trades WHERE order_id = $1 AND source = $2)`
	var exists bool
	err := db.conn.QueryRow(query, orderID, source).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check trade existence: %w", err)
	}
	return exists, nil
}

// GetTradeByID retrieves a trade by ID
func (db *DB) GetTradeByID(id int) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE id = $1
	`
	t, err := scanTrade(db.conn.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trade not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return t, nil
}

// GetTradesByInstrument retrieves all trades for an instrument, oldest first
func (db *DB) GetTradesByInstrument(instrument string) ([]*models.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE instrument = $1
		ORDER BY trade_date ASC, id ASC
	`
	return db.scanTrades(db.conn.Query(query, instrument))
}

// GetAllTrades retrieves every trade, oldest first
func (db *DB) GetAllTrades() ([]*models.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		ORDER BY trade_date ASC, id ASC
	`
	return db.scanTrades(db.conn.Query(query))
}

// ListInstruments returns the distinct instruments with their trade counts
func (db *DB) ListInstruments() ([]*models.Instrument, error) {
	query := `
		SELECT instrument, COALESCE(MAX(name), ''), COUNT(*)
		FROM trades
		GROUP BY instrument
		ORDER BY instrument ASC
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []*models.Instrument
	for rows.Next() {
		var inst models.Instrument
		if err := rows.Scan(&inst.Code, &inst.Name, &inst.Trades); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, &inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate instruments: %w", err)
	}
	return instruments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	var t models.Trade
	var name sql.NullString

	err := row.Scan(
		&t.ID, &t.OrderID, &t.Source, &t.TradeDate, &t.Side, &t.Instrument, &name,
		&t.Price, &t.Shares, &t.Fee, &t.Tax, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if name.Valid {
		t.Name = name.String
	}
	return &t, nil
}

func (db *DB) scanTrades(rows *sql.Rows, err error) ([]*models.Trade, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}

	return trades, nil
}
