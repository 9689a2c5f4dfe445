package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/prompt-general/healthscore/internal/config"
)

// Producer defines the interface for Kafka message production
type Producer interface {
	// Send writes one message. An empty topic means the producer's default.
	Send(ctx context.Context, topic string, key []byte, value []byte) error
	Close() error
}

// kafkaProducer implements the Producer interface
type kafkaProducer struct {
	writer       *kafka.Writer
	defaultTopic string
	mu           sync.Mutex
	closed       bool
}

// NewProducer creates a new Kafka producer. The writer carries no topic of
// its own; every message names one.
func NewProducer(cfg config.KafkaConfig) (Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrInvalidBrokers
	}
	if cfg.Topic == "" {
		return nil, ErrInvalidTopic
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           cfg.Timeout,
		AllowAutoTopicCreation: false,
	}

	return &kafkaProducer{
		writer:       writer,
		defaultTopic: cfg.Topic,
	}, nil
}

// Send sends a message to Kafka
func (p *kafkaProducer) Send(ctx context.Context, topic string, key []byte, value []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrProducerClosed
	}
	p.mu.Unlock()

	return p.writer.WriteMessages(ctx, p.message(topic, key, value))
}

func (p *kafkaProducer) message(topic string, key, value []byte) kafka.Message {
	if topic == "" {
		topic = p.defaultTopic
	}
	return kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now().UTC(),
	}
}

// Close closes the producer
func (p *kafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	return p.writer.Close()
}
