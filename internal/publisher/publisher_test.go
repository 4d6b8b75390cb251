package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/navid-fn/radar/configs"
	"github.com/navid-fn/radar/internal/storage/models"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func candle(symbol string, ts time.Time) *models.Candle {
	return &models.Candle{
		Symbol:       symbol,
		Timeframe:    3600,
		UTCTimestamp: ts,
		Open:         100,
		High:         110,
		Low:          90,
		Close:        105,
		Volume:       10,
	}
}

func TestSenderPublish(t *testing.T) {
	w := new(mockWriter)
	var sent []kafka.Message
	w.On("WriteMessages", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]kafka.Message) }).
		Return(nil)

	logger, _ := test.NewNullLogger()
	s := NewSender(w, logger)

	ts := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	err := s.Publish(context.Background(), "Binance", []*models.Candle{
		candle("BTCUSDT", ts),
		candle("ETHUSDT", ts),
	})
	require.NoError(t, err)
	require.Len(t, sent, 2)

	assert.Equal(t, []byte("BTCUSDT"), sent[0].Key)
	var msg CandleMessage
	require.NoError(t, json.Unmarshal(sent[0].Value, &msg))
	assert.Equal(t, CandleMessage{
		Exchange:  "Binance",
		Symbol:    "BTCUSDT",
		Timeframe: 3600,
		OpenTime:  "2021-01-01T00:00:00Z",
		Open:      100,
		High:      110,
		Low:       90,
		Close:     105,
		Volume:    10,
	}, msg)
	w.AssertExpectations(t)
}

func TestSenderPublishEmpty(t *testing.T) {
	w := new(mockWriter)
	logger, _ := test.NewNullLogger()

	require.NoError(t, NewSender(w, logger).Publish(context.Background(), "Binance", nil))
	w.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
}

func TestSenderPublishError(t *testing.T) {
	w := new(mockWriter)
	boom := errors.New("broker down")
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(boom)
	logger, _ := test.NewNullLogger()

	err := NewSender(w, logger).Publish(context.Background(), "Binance", []*models.Candle{candle("BTCUSDT", time.Now())})
	assert.ErrorIs(t, err, boom)
}

func TestSenderPublishCancelled(t *testing.T) {
	w := new(mockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(context.Canceled)
	logger, _ := test.NewNullLogger()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewSender(w, logger).Publish(ctx, "Binance", []*models.Candle{candle("BTCUSDT", time.Now())})
	assert.NoError(t, err)
}

func TestNewDisabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := New(configs.PublisherConfig{Topic: "radar_ohlc"}, logger)

	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(context.Background(), "Binance", []*models.Candle{candle("BTCUSDT", time.Now())}))
	assert.NoError(t, p.Close())
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter(configs.PublisherConfig{Brokers: []string{"localhost:9092"}, Topic: "radar_ohlc"})
	assert.Equal(t, "radar_ohlc", w.Topic)
	assert.Equal(t, "localhost:9092", w.Addr.String())
}
