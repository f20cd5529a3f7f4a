// Package service ties the trade store, the accountant and the optional
// report cache and event publisher together behind one API used by both the
// HTTP server and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/accounting"
	"github.com/trogers1052/trade-ledger/internal/ledger"
	"github.com/trogers1052/trade-ledger/internal/models"
)

var (
	// ErrInvalidTrade wraps every validation failure of user input
	ErrInvalidTrade = errors.New("invalid trade")
	// ErrNotFound is returned when an instrument has no trades
	ErrNotFound = errors.New("not found")
	// ErrDuplicateTrade is returned when an order id was already recorded
	ErrDuplicateTrade = errors.New("duplicate trade")
)

// TradeStore is the append-only trade ledger
type TradeStore interface {
	CreateTrade(t *models.Trade) error
	CreateTrades(trades []*models.Trade) error
	GetTradesByInstrument(instrument string) ([]*models.Trade, error)
	ListInstruments() ([]*models.Instrument, error)
	TradeExistsByOrderID(orderID, source string) (bool, error)
}

// ReportCache stores computed reports
type ReportCache interface {
	Get(ctx context.Context, instrument string) (*models.PositionReport, error)
	Set(ctx context.Context, report *models.PositionReport) error
	Invalidate(ctx context.Context, instrument string) error
}

// Publisher announces recorded trades
type Publisher interface {
	PublishTradeRecorded(ctx context.Context, t *models.Trade) error
}

// Config holds the collaborators of a Service. Cache and Publisher are
// optional.
type Config struct {
	Store      TradeStore
	Cache      ReportCache
	Publisher  Publisher
	Accountant *accounting.Accountant
	Log        zerolog.Logger
}

// Service is the ledger application service
type Service struct {
	store      TradeStore
	cache      ReportCache
	publisher  Publisher
	accountant *accounting.Accountant
	log        zerolog.Logger
	now        func() time.Time
}

// New creates a Service
func New(cfg Config) *Service {
	return &Service{
		store:      cfg.Store,
		cache:      cfg.Cache,
		publisher:  cfg.Publisher,
		accountant: cfg.Accountant,
		log:        cfg.Log.With().Str("component", "service").Logger(),
		now:        time.Now,
	}
}

// Accountant returns the accountant used for reports
func (s *Service) Accountant() *accounting.Accountant {
	return s.accountant
}

// RecordRequest is user input for a single trade
type RecordRequest struct {
	OrderID    string              `json:"order_id,omitempty"`
	Source     string              `json:"source,omitempty"`
	Date       string              `json:"date,omitempty"`
	Side       string              `json:"side"`
	Instrument string              `json:"instrument"`
	Name       string              `json:"name,omitempty"`
	Price      decimal.Decimal     `json:"price"`
	Shares     int64               `json:"shares"`
	Fee        decimal.NullDecimal `json:"fee"`
	Tax        decimal.NullDecimal `json:"tax"`
}

// toTrade validates a request and builds the trade it describes
func (s *Service) toTrade(req RecordRequest) (*models.Trade, error) {
	code, err := ledger.NormalizeCode(req.Instrument)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrade, err)
	}
	side, err := ledger.ParseSide(req.Side)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrade, err)
	}

	date := s.now().UTC()
	if req.Date != "" {
		date, err = ledger.ParseDate(req.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTrade, err)
		}
	}

	t := &models.Trade{
		OrderID:    req.OrderID,
		Source:     req.Source,
		TradeDate:  time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		Side:       side,
		Instrument: code,
		Name:       req.Name,
		Price:      req.Price,
		Shares:     req.Shares,
		Fee:        req.Fee,
		Tax:        req.Tax,
	}
	if t.OrderID == "" {
		t.OrderID = uuid.NewString()
	}
	if t.Source == "" {
		t.Source = models.SourceManual
	}
	if err := accounting.ValidateTrade(t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrade, err)
	}
	return t, nil
}

// RecordTrade validates and appends one trade, then drops the cached report
// and publishes a TRADE_RECORDED event. Cache and publish failures are
// logged only.
func (s *Service) RecordTrade(ctx context.Context, req RecordRequest) (*models.Trade, error) {
	t, err := s.toTrade(req)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.TradeExistsByOrderID(t.OrderID, t.Source)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: order %s from %s", ErrDuplicateTrade, t.OrderID, t.Source)
	}

	if err := s.store.CreateTrade(t); err != nil {
		return nil, err
	}

	s.invalidate(ctx, t.Instrument)
	if s.publisher != nil {
		if err := s.publisher.PublishTradeRecorded(ctx, t); err != nil {
			s.log.Warn().Err(err).Str("order_id", t.OrderID).Msg("Failed to publish trade")
		}
	}

	s.log.Info().
		Str("instrument", t.Instrument).
		Str("side", t.Side).
		Int64("shares", t.Shares).
		Str("price", t.Price.String()).
		Msg("Recorded trade")
	return t, nil
}

// Report returns the position report of one instrument, from the cache
// when possible
func (s *Service) Report(ctx context.Context, instrument string) (*models.PositionReport, error) {
	code, err := ledger.NormalizeCode(instrument)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrade, err)
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, code)
		if err != nil {
			s.log.Warn().Err(err).Str("instrument", code).Msg("Report cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	report, err := s.compute(code)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, report); err != nil {
			s.log.Warn().Err(err).Str("instrument", code).Msg("Report cache write failed")
		}
	}
	return report, nil
}

func (s *Service) compute(code string) (*models.PositionReport, error) {
	trades, err := s.store.GetTradesByInstrument(code)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("%w: no trades for %s", ErrNotFound, code)
	}
	return s.accountant.Replay(code, trades), nil
}

// Trades returns the raw trades of one instrument, oldest first
func (s *Service) Trades(instrument string) ([]*models.Trade, error) {
	code, err := ledger.NormalizeCode(instrument)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrade, err)
	}
	trades, err := s.store.GetTradesByInstrument(code)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("%w: no trades for %s", ErrNotFound, code)
	}
	return trades, nil
}

// Instruments lists the instruments in the ledger
func (s *Service) Instruments() ([]*models.Instrument, error) {
	return s.store.ListInstruments()
}

// ImportResult counts what happened to each trade of an import
type ImportResult struct {
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// Import appends a batch of trades in one store call. Invalid trades and
// order ids already present are skipped.
func (s *Service) Import(ctx context.Context, trades []*models.Trade) (ImportResult, error) {
	var result ImportResult
	batch := make([]*models.Trade, 0, len(trades))
	seen := make(map[string]bool, len(trades))
	touched := make(map[string]bool)

	for _, t := range trades {
		if t != nil && t.Source == "" {
			t.Source = models.SourceLedger
		}
		if err := accounting.ValidateTrade(t); err != nil {
			result.Invalid++
			s.log.Warn().Err(err).Msg("Skipping invalid trade")
			continue
		}

		key := t.OrderID + ":" + t.Source
		if seen[key] {
			result.Duplicates++
			continue
		}
		exists, err := s.store.TradeExistsByOrderID(t.OrderID, t.Source)
		if err != nil {
			return result, err
		}
		if exists {
			result.Duplicates++
			continue
		}

		seen[key] = true
		touched[t.Instrument] = true
		batch = append(batch, t)
	}

	if len(batch) > 0 {
		if err := s.store.CreateTrades(batch); err != nil {
			return result, err
		}
	}
	result.Imported = len(batch)

	for code := range touched {
		s.invalidate(ctx, code)
	}

	s.log.Info().
		Int("imported", result.Imported).
		Int("duplicates", result.Duplicates).
		Int("invalid", result.Invalid).
		Msg("Import finished")
	return result, nil
}

// WarmCache recomputes and caches the report of every instrument. It
// returns the number of reports refreshed.
func (s *Service) WarmCache(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}

	instruments, err := s.store.ListInstruments()
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, inst := range instruments {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		report, err := s.compute(inst.Code)
		if err != nil {
			s.log.Warn().Err(err).Str("instrument", inst.Code).Msg("Failed to compute report")
			continue
		}
		if err := s.cache.Set(ctx, report); err != nil {
			return refreshed, err
		}
		refreshed++
	}
	return refreshed, nil
}

func (s *Service) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, code); err != nil {
		s.log.Warn().Err(err).Str("instrument", code).Msg("Failed to invalidate cached report")
	}
}
