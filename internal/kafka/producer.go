package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/trade-ledger/internal/models"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing events to Kafka
type Producer struct {
	writer writer
	topic  string
	source string
}

// NewProducer creates a new Kafka producer. source is stamped on every event.
func NewProducer(brokers []string, topic, source string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: w,
		topic:  topic,
		source: source,
	}
}

// PublishTradeRecorded publishes a TRADE_RECORDED event keyed by instrument
func (p *Producer) PublishTradeRecorded(ctx context.Context, t *models.Trade) error {
	event := models.TradeEvent{
		EventType: models.EventTradeRecorded,
		Source:    p.source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      tradeEventData(t),
	}
	return p.publish(ctx, t.Instrument, event)
}

func tradeEventData(t *models.Trade) models.TradeEventData {
	data := models.TradeEventData{
		OrderID:    t.OrderID,
		Instrument: t.Instrument,
		Name:       t.Name,
		Side:       t.Side,
		Shares:     fmt.Sprintf("%d", t.Shares),
		Price:      t.Price.String(),
		TradeDate:  t.TradeDate.Format("2006-01-02"),
	}
	if t.Fee.Valid {
		data.Fee = t.Fee.Decimal.String()
	}
	if t.Tax.Valid {
		data.Tax = t.Tax.Decimal.String()
	}
	return data
}

func (p *Producer) publish(ctx context.Context, key string, event models.TradeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
