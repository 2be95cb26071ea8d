package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Aidin1998/dexter/pkg/models"
)

// KafkaConfig contains configuration for Kafka connection
type KafkaConfig struct {
	Brokers      []string      `json:"brokers"`
	Topic        Topic         `json:"topic"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BatchSize    int           `json:"batch_size"`
	BatchTimeout time.Duration `json:"batch_timeout"`
	RequiredAcks int           `json:"required_acks"`
	Compression  string        `json:"compression"`
	RetryMax     int           `json:"retry_max"`
}

// DefaultKafkaConfig returns default configuration for the settlement stream
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        TopicSettlements,
		WriteTimeout: time.Second,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: 1, // leader only
		Compression:  "snappy",
		RetryMax:     3,
	}
}

// messageWriter is the subset of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes settlement reports to a Kafka topic, keyed by order id
// so all reports of an order land on one partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  Topic
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher. The connection is established lazily
// on the first write.
func NewKafkaPublisher(config *KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if config == nil {
		config = DefaultKafkaConfig()
	}
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if config.Topic == "" {
		config.Topic = TopicSettlements
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        string(config.Topic),
		Balancer:     &kafka.CRC32Balancer{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  config.RetryMax,
		Compression:  compression(config.Compression),
	}
	return newKafkaPublisher(writer, config.Topic, logger), nil
}

func newKafkaPublisher(w messageWriter, topic Topic, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, logger: logger}
}

func compression(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Snappy
	}
}

// Publish writes one report.
func (p *KafkaPublisher) Publish(ctx context.Context, report models.SettlementReport) error {
	data, err := json.Marshal(NewSettlementMessage(report))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(report.Order.ID.String()),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(MsgOrderSettled)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close writer", zap.Error(err))
		return err
	}
	return nil
}
