package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade side constants
const (
	TradeTypeBuy  = "BUY"
	TradeTypeSell = "SELL"
)

// Trade source constants
const (
	SourceManual = "manual"
	SourceLedger = "ledger"
)

// Trade is a single recorded buy or sell of one instrument.
// Trades are append-only: once stored they are never updated.
type Trade struct {
	ID         int                 `json:"id"`
	OrderID    string              `json:"order_id"`
	Source     string              `json:"source"`
	TradeDate  time.Time           `json:"trade_date"`
	Side       string              `json:"side"`
	Instrument string              `json:"instrument"`
	Name       string              `json:"name,omitempty"`
	Price      decimal.Decimal     `json:"price"`
	Shares     int64               `json:"shares"`
	Fee        decimal.NullDecimal `json:"fee"`
	Tax        decimal.NullDecimal `json:"tax"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Amount returns price * shares.
func (t *Trade) Amount() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Shares))
}

// IsBuy reports whether the trade is a buy
func (t *Trade) IsBuy() bool {
	return t.Side == TradeTypeBuy
}

// Instrument is a distinct instrument code present in the ledger
type Instrument struct {
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Trades int    `json:"trades"`
}

// TradeEvent represents a Kafka event carrying a trade
type TradeEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Data      TradeEventData `json:"data"`
}

// TradeEventData holds the trade fields of a TradeEvent. Numbers travel as
// strings so no precision is lost in JSON.
type TradeEventData struct {
	OrderID    string `json:"order_id"`
	Instrument string `json:"instrument"`
	Name       string `json:"name,omitempty"`
	Side       string `json:"side"`
	Shares     string `json:"shares"`
	Price      string `json:"price"`
	Fee        string `json:"fee,omitempty"`
	Tax        string `json:"tax,omitempty"`
	TradeDate  string `json:"trade_date,omitempty"`
}

// Event type constants
const (
	EventTradeDetected = "TRADE_DETECTED"
	EventTradeRecorded = "TRADE_RECORDED"
)
