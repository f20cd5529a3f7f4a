package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/accounting"
	"github.com/trogers1052/trade-ledger/internal/ledger"
	"github.com/trogers1052/trade-ledger/internal/models"
)

// TradeRepository defines the trade store operations the consumer needs
type TradeRepository interface {
	CreateTrade(t *models.Trade) error
	TradeExistsByOrderID(orderID, source string) (bool, error)
}

// ReportInvalidator drops stale cached reports
type ReportInvalidator interface {
	Invalidate(ctx context.Context, instrument string) error
}

type reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// Consumer appends TRADE_DETECTED events to the ledger
type Consumer struct {
	reader reader
	repo   TradeRepository
	cache  ReportInvalidator
	log    zerolog.Logger
}

// NewConsumer creates a new Kafka consumer for trade events. cache may be nil.
func NewConsumer(brokers []string, topic, groupID string, repo TradeRepository, cache ReportInvalidator, log zerolog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: r,
		repo:   repo,
		cache:  cache,
		log:    log.With().Str("component", "kafka_consumer").Logger(),
	}
}

// Start consumes messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info().Str("topic", c.reader.Config().Topic).Msg("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("Kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Error().Err(err).Msg("Error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.Error().Err(err).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("Error processing message")
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	c.log.Debug().
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Str("key", string(msg.Key)).
		Msg("Received message")

	var event models.TradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal trade event: %w", err)
	}

	if event.EventType != models.EventTradeDetected {
		c.log.Debug().Str("event_type", event.EventType).Msg("Ignoring event type")
		return nil
	}

	exists, err := c.repo.TradeExistsByOrderID(event.Data.OrderID, event.Source)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate trade: %w", err)
	}
	if exists {
		c.log.Info().
			Str("order_id", event.Data.OrderID).
			Str("source", event.Source).
			Msg("Trade already recorded, skipping")
		return nil
	}

	trade, err := convertEventToTrade(event)
	if err != nil {
		return fmt.Errorf("failed to convert event to trade: %w", err)
	}

	if err := c.repo.CreateTrade(trade); err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, trade.Instrument); err != nil {
			c.log.Warn().Err(err).Str("instrument", trade.Instrument).Msg("Failed to invalidate cached report")
		}
	}

	c.log.Info().
		Str("side", trade.Side).
		Int64("shares", trade.Shares).
		Str("instrument", trade.Instrument).
		Str("price", trade.Price.String()).
		Str("order_id", trade.OrderID).
		Msg("Saved trade")

	return nil
}

// convertEventToTrade maps a TradeEvent to a Trade
func convertEventToTrade(event models.TradeEvent) (*models.Trade, error) {
	data := event.Data

	if data.OrderID == "" {
		return nil, fmt.Errorf("missing order_id")
	}

	code, err := ledger.NormalizeCode(data.Instrument)
	if err != nil {
		return nil, err
	}

	side := strings.ToUpper(strings.TrimSpace(data.Side))
	if side != models.TradeTypeBuy && side != models.TradeTypeSell {
		return nil, fmt.Errorf("invalid trade side: %s", data.Side)
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %s: %w", data.Price, err)
	}

	sharesDec, err := decimal.NewFromString(data.Shares)
	if err != nil || !sharesDec.IsInteger() {
		return nil, fmt.Errorf("invalid shares %s", data.Shares)
	}

	fee, err := optionalDecimal(data.Fee)
	if err != nil {
		return nil, fmt.Errorf("invalid fee %s: %w", data.Fee, err)
	}
	tax, err := optionalDecimal(data.Tax)
	if err != nil {
		return nil, fmt.Errorf("invalid tax %s: %w", data.Tax, err)
	}

	trade := &models.Trade{
		OrderID:    data.OrderID,
		Source:     event.Source,
		TradeDate:  tradeDate(data.TradeDate, event.Timestamp),
		Side:       side,
		Instrument: code,
		Name:       data.Name,
		Price:      price,
		Shares:     sharesDec.IntPart(),
		Fee:        fee,
		Tax:        tax,
	}
	if err := accounting.ValidateTrade(trade); err != nil {
		return nil, err
	}
	return trade, nil
}

func optionalDecimal(s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// tradeDate takes the trade date from the event data, then the event
// timestamp, then today. Times are truncated to the calendar day.
func tradeDate(date, timestamp string) time.Time {
	for _, s := range []string{date, timestamp} {
		if s == "" {
			continue
		}
		for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return truncateDay(t)
			}
		}
	}
	return truncateDay(time.Now())
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
