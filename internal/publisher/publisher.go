// Package publisher announces freshly stored candles on a Kafka topic so
// downstream radar consumers do not have to poll the candle table.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/radar/configs"
	"github.com/navid-fn/radar/internal/storage/models"
)

// WriteTimeout bounds one WriteMessages call.
const WriteTimeout = 5 * time.Second

// MessageWriter is the subset of *kafka.Writer the Sender uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends stored candles downstream.
type Publisher interface {
	Publish(ctx context.Context, exchange string, candles []*models.Candle) error
	Close() error
}

// CandleMessage is the JSON payload of one message.
type CandleMessage struct {
	Exchange  string  `json:"exchange"`
	Symbol    string  `json:"symbol"`
	Timeframe int     `json:"timeframe"`
	OpenTime  string  `json:"open_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// NewCandleMessage converts a stored candle into its wire form.
func NewCandleMessage(exchange string, c *models.Candle) CandleMessage {
	return CandleMessage{
		Exchange:  exchange,
		Symbol:    c.Symbol,
		Timeframe: c.Timeframe,
		OpenTime:  c.UTCTimestamp.UTC().Format(time.RFC3339),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

// New returns a Kafka backed publisher, or Nop when no brokers are configured.
func New(cfg configs.PublisherConfig, logger logrus.FieldLogger) Publisher {
	if !cfg.Enabled() {
		return Nop{}
	}
	return NewSender(NewKafkaWriter(cfg), logger)
}

// NewKafkaWriter builds the synchronous writer used for candle messages.
func NewKafkaWriter(cfg configs.PublisherConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Zstd,
	}
}

// Sender publishes candles through a MessageWriter, keyed by symbol so one
// symbol's candles stay ordered within a partition.
type Sender struct {
	writer MessageWriter
	logger logrus.FieldLogger
}

func NewSender(w MessageWriter, logger logrus.FieldLogger) *Sender {
	return &Sender{writer: w, logger: logger}
}

func (s *Sender) Publish(ctx context.Context, exchange string, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(candles))
	for _, c := range candles {
		value, err := json.Marshal(NewCandleMessage(exchange, c))
		if err != nil {
			return fmt.Errorf("failed to encode candle: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(c.Symbol), Value: value})
	}

	writeCtx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()

	if err := s.writer.WriteMessages(writeCtx, msgs...); err != nil {
		// shutdown in progress
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"exchange": exchange, "messages": len(msgs)}).Debug("Candles published")
	return nil
}

func (s *Sender) Close() error {
	return s.writer.Close()
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, string, []*models.Candle) error { return nil }

func (Nop) Close() error { return nil }
