package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/papertrade/internal/models"
)

// portfolioKey partitions account-level events that carry no ticker
const portfolioKey = "portfolio"

// messageWriter is the subset of *kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes portfolio events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string, logger zerolog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		logger: logger.With().Str("component", "kafka_producer").Logger(),
		now:    time.Now,
	}
}

// PublishTradeExecuted publishes a committed BUY or SELL, keyed by ticker
func (p *Producer) PublishTradeExecuted(ctx context.Context, trade models.Trade, version int64) error {
	event := models.PortfolioEvent{
		EventType: models.EventTradeExecuted,
		Trade:     &trade,
		Version:   version,
		Timestamp: p.now(),
	}
	return p.publish(ctx, trade.Ticker, event)
}

// PublishCashDeposited publishes the cash balance after a deposit
func (p *Producer) PublishCashDeposited(ctx context.Context, cash decimal.Decimal, version int64) error {
	event := models.PortfolioEvent{
		EventType: models.EventCashDeposited,
		Cash:      &cash,
		Version:   version,
		Timestamp: p.now(),
	}
	return p.publish(ctx, portfolioKey, event)
}

// PublishPortfolioReset publishes the restored cash balance after a reset
func (p *Producer) PublishPortfolioReset(ctx context.Context, cash decimal.Decimal, version int64) error {
	event := models.PortfolioEvent{
		EventType: models.EventPortfolioReset,
		Cash:      &cash,
		Version:   version,
		Timestamp: p.now(),
	}
	return p.publish(ctx, portfolioKey, event)
}

// PublishAssetSnapshot publishes a recorded daily total
func (p *Producer) PublishAssetSnapshot(ctx context.Context, snap models.AssetSnapshot) error {
	event := models.PortfolioEvent{
		EventType: models.EventAssetSnapshot,
		Snapshot:  &snap,
		Timestamp: p.now(),
	}
	return p.publish(ctx, portfolioKey, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.PortfolioEvent) error {
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

	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("key", key).
		Int64("version", event.Version).
		Msg("Published portfolio event")
	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
