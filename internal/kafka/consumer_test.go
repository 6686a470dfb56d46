package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/papertrade/internal/models"
	"github.com/trogers1052/papertrade/internal/pricefeed"
)

// MockReader replays queued messages, then blocks until ctx is cancelled
type MockReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	errs     []error
	closed   bool
}

func (m *MockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(m.messages) > 0 {
		msg := m.messages[0]
		m.messages = m.messages[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *MockReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockReader) Config() kafka.ReaderConfig {
	return kafka.ReaderConfig{Topic: "stock-prices"}
}

// recordingWriter keeps the last quote stored per ticker
type recordingWriter struct {
	mu     sync.Mutex
	quotes map[string]storedQuote
}

type storedQuote struct {
	price decimal.Decimal
	asOf  time.Time
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{quotes: make(map[string]storedQuote)}
}

func (w *recordingWriter) SetPrice(_ context.Context, ticker string, price decimal.Decimal, ts time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quotes[ticker] = storedQuote{price: price, asOf: ts}
	return nil
}

func (w *recordingWriter) quote(ticker string) (storedQuote, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q, ok := w.quotes[ticker]
	return q, ok
}

// failingWriter rejects every quote
type failingWriter struct{}

func (failingWriter) SetPrice(context.Context, string, decimal.Decimal, time.Time) error {
	return errors.New("cache unavailable")
}

func newTestConsumer(prices pricefeed.Writer, reader messageReader) *PriceConsumer {
	return &PriceConsumer{
		reader: reader,
		prices: prices,
		logger: zerolog.Nop(),
		now:    func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) },
	}
}

func priceMessage(t *testing.T, event models.PriceEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.Data.Symbol), Value: data}
}

func strPtr(s string) *string { return &s }

func TestProcessMessage_StoresPrice(t *testing.T) {
	feed := newRecordingWriter()
	c := newTestConsumer(feed, nil)

	msg := priceMessage(t, models.PriceEvent{
		EventType: models.EventPriceUpdated,
		Source:    "krx",
		Timestamp: "2026-03-02T09:30:00Z",
		Data:      models.PriceEventData{Symbol: "005930", Price: "71500"},
	})
	require.NoError(t, c.processMessage(context.Background(), msg))

	q, ok := feed.quote("005930")
	require.True(t, ok)
	assert.True(t, q.price.Equal(decimal.NewFromInt(71500)))
	assert.Equal(t, time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC), q.asOf.UTC())
}

func TestProcessMessage_PrefersAsOf(t *testing.T) {
	feed := newRecordingWriter()
	c := newTestConsumer(feed, nil)

	msg := priceMessage(t, models.PriceEvent{
		EventType: models.EventPriceUpdated,
		Timestamp: "2026-03-02T09:30:00Z",
		Data:      models.PriceEventData{Symbol: "aapl", Price: "190.25", AsOf: strPtr("2026-03-02T09:29:00")},
	})
	require.NoError(t, c.processMessage(context.Background(), msg))

	q, ok := feed.quote("AAPL")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 29, 0, 0, time.UTC), q.asOf)
}

func TestProcessMessage_MissingTimestampUsesNow(t *testing.T) {
	feed := newRecordingWriter()
	c := newTestConsumer(feed, nil)

	msg := priceMessage(t, models.PriceEvent{
		EventType: models.EventPriceUpdated,
		Data:      models.PriceEventData{Symbol: "AAPL", Price: "190"},
	})
	require.NoError(t, c.processMessage(context.Background(), msg))

	q, ok := feed.quote("AAPL")
	require.True(t, ok)
	assert.Equal(t, c.now(), q.asOf)
}

func TestProcessMessage_UnreadableTimestampKeepsNewerQuote(t *testing.T) {
	feed := pricefeed.NewMemory()
	c := newTestConsumer(feed, nil)
	ctx := context.Background()

	require.NoError(t, c.processMessage(ctx, priceMessage(t, models.PriceEvent{
		EventType: models.EventPriceUpdated,
		Timestamp: "2026-03-02T08:59:00Z",
		Data:      models.PriceEventData{Symbol: "AAPL", Price: "190"},
	})))

	err := c.processMessage(ctx, priceMessage(t, models.PriceEvent{
		EventType: models.EventPriceUpdated,
		Timestamp: "not a time",
		Data:      models.PriceEventData{Symbol: "AAPL", Price: "150"},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timestamp")

	prices, err := feed.Prices(ctx, []string{"AAPL"})
	require.NoError(t, err)
	assert.True(t, prices["AAPL"].Equal(decimal.NewFromInt(190)))
}

func TestProcessMessage_IgnoresOtherEvents(t *testing.T) {
	feed := newRecordingWriter()
	c := newTestConsumer(feed, nil)

	msg := priceMessage(t, models.PriceEvent{
		EventType: "TRADE_DETECTED",
		Data:      models.PriceEventData{Symbol: "AAPL", Price: "190"},
	})
	require.NoError(t, c.processMessage(context.Background(), msg))

	_, ok := feed.quote("AAPL")
	assert.False(t, ok)
}

func TestProcessMessage_Rejects(t *testing.T) {
	tests := []struct {
		name string
		msg  func(t *testing.T) kafka.Message
	}{
		{
			name: "malformed json",
			msg:  func(*testing.T) kafka.Message { return kafka.Message{Value: []byte("{")} },
		},
		{
			name: "missing symbol",
			msg: func(t *testing.T) kafka.Message {
				return priceMessage(t, models.PriceEvent{EventType: models.EventPriceUpdated,
					Data: models.PriceEventData{Price: "1"}})
			},
		},
		{
			name: "bad price",
			msg: func(t *testing.T) kafka.Message {
				return priceMessage(t, models.PriceEvent{EventType: models.EventPriceUpdated,
					Data: models.PriceEventData{Symbol: "AAPL", Price: "abc"}})
			},
		},
		{
			name: "unreadable as_of",
			msg: func(t *testing.T) kafka.Message {
				return priceMessage(t, models.PriceEvent{EventType: models.EventPriceUpdated,
					Data: models.PriceEventData{Symbol: "AAPL", Price: "1", AsOf: strPtr("yesterday")}})
			},
		},
		{
			name: "non-positive price",
			msg: func(t *testing.T) kafka.Message {
				return priceMessage(t, models.PriceEvent{EventType: models.EventPriceUpdated,
					Data: models.PriceEventData{Symbol: "AAPL", Price: "-5"}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := newRecordingWriter()
			c := newTestConsumer(feed, nil)

			assert.Error(t, c.processMessage(context.Background(), tt.msg(t)))
			_, ok := feed.quote("AAPL")
			assert.False(t, ok)
		})
	}
}

func TestProcessMessage_WriterError(t *testing.T) {
	c := newTestConsumer(failingWriter{}, nil)

	msg := priceMessage(t, models.PriceEvent{
		EventType: models.EventPriceUpdated,
		Data:      models.PriceEventData{Symbol: "AAPL", Price: "190"},
	})
	err := c.processMessage(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store price")
}

func TestStart_ConsumesUntilCancelled(t *testing.T) {
	feed := newRecordingWriter()
	reader := &MockReader{
		errs: []error{errors.New("transient")},
		messages: []kafka.Message{
			{Value: []byte("garbage")},
			priceMessage(t, models.PriceEvent{
				EventType: models.EventPriceUpdated,
				Timestamp: "2026-03-02T09:30:00Z",
				Data:      models.PriceEventData{Symbol: "MSFT", Price: "410"},
			}),
		},
	}
	c := newTestConsumer(feed, reader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := feed.quote("MSFT")
		return ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
