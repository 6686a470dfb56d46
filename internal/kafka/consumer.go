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
	"github.com/trogers1052/papertrade/internal/models"
	"github.com/trogers1052/papertrade/internal/pricefeed"
)

// messageReader is the subset of *kafka.Reader the consumer uses
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// PriceConsumer feeds PRICE_UPDATED events into a price cache
type PriceConsumer struct {
	reader messageReader
	prices pricefeed.Writer
	logger zerolog.Logger
	now    func() time.Time
}

// NewPriceConsumer creates a new Kafka consumer for quote events
func NewPriceConsumer(brokers []string, topic, groupID string, prices pricefeed.Writer, logger zerolog.Logger) *PriceConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &PriceConsumer{
		reader: reader,
		prices: prices,
		logger: logger.With().Str("component", "price_consumer").Logger(),
		now:    time.Now,
	}
}

// Start consumes messages until ctx is cancelled
func (c *PriceConsumer) Start(ctx context.Context) error {
	c.logger.Info().Str("topic", c.reader.Config().Topic).Msg("Starting price consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Price consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error().Err(err).Msg("Error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Warn().Err(err).
					Int("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("Error processing message")
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *PriceConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.PriceEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal price event: %w", err)
	}

	if event.EventType != models.EventPriceUpdated {
		c.logger.Debug().Str("event_type", event.EventType).Msg("Ignoring event")
		return nil
	}

	ticker, price, asOf, err := c.convertEvent(event)
	if err != nil {
		return fmt.Errorf("failed to convert price event: %w", err)
	}

	if err := c.prices.SetPrice(ctx, ticker, price, asOf); err != nil {
		return fmt.Errorf("failed to store price: %w", err)
	}

	c.logger.Debug().
		Str("ticker", ticker).
		Str("price", price.String()).
		Time("as_of", asOf).
		Msg("Stored price")
	return nil
}

// convertEvent validates and parses a quote
func (c *PriceConsumer) convertEvent(event models.PriceEvent) (string, decimal.Decimal, time.Time, error) {
	data := event.Data

	ticker := strings.ToUpper(strings.TrimSpace(data.Symbol))
	if ticker == "" {
		return "", decimal.Zero, time.Time{}, fmt.Errorf("missing symbol")
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return "", decimal.Zero, time.Time{}, fmt.Errorf("invalid price %s: %w", data.Price, err)
	}
	if !price.IsPositive() {
		return "", decimal.Zero, time.Time{}, fmt.Errorf("price must be positive, got %s", data.Price)
	}

	ts := event.Timestamp
	if data.AsOf != nil && *data.AsOf != "" {
		ts = *data.AsOf
	}
	asOf, err := c.parseTime(ts)
	if err != nil {
		return "", decimal.Zero, time.Time{}, err
	}
	return ticker, price, asOf, nil
}

// parseTime reads a quote timestamp. An absent timestamp means the quote is
// current; an unreadable one is rejected so it cannot displace a newer quote.
func (c *PriceConsumer) parseTime(s string) (time.Time, error) {
	if s == "" {
		return c.now(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	// Try parsing without timezone
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Close closes the Kafka consumer
func (c *PriceConsumer) Close() error {
	return c.reader.Close()
}
