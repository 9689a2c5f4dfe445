package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/prompt-general/healthscore/internal/config"
)

// AtRiskTopic carries one message per customer in the Critical category.
const AtRiskTopic = "customer-health.at-risk"

// alertRetention is how long at-risk alerts stay on the topic.
const alertRetention = 14 * 24 * time.Hour

// TopicConfig defines Kafka topic configuration
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
}

// AlertTopic returns the provisioning settings of the configured alert topic.
func AlertTopic(cfg config.KafkaConfig) TopicConfig {
	return TopicConfig{
		Name:              cfg.Topic,
		Partitions:        cfg.Partitions,
		ReplicationFactor: cfg.ReplicationFactor,
		RetentionMs:       alertRetention.Milliseconds(),
		CleanupPolicy:     "delete",
	}
}

func (tc TopicConfig) request() kafka.TopicConfig {
	return kafka.TopicConfig{
		Topic:             tc.Name,
		NumPartitions:     tc.Partitions,
		ReplicationFactor: tc.ReplicationFactor,
		ConfigEntries: []kafka.ConfigEntry{
			{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(tc.RetentionMs, 10)},
			{ConfigName: "cleanup.policy", ConfigValue: tc.CleanupPolicy},
		},
	}
}

// TopicManager manages Kafka topics
type TopicManager struct {
	brokers []string
	logger  *slog.Logger
}

func NewTopicManager(brokers []string, logger *slog.Logger) *TopicManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TopicManager{brokers: brokers, logger: logger}
}

// Ping dials the first broker.
func (tm *TopicManager) Ping(ctx context.Context) error {
	if len(tm.brokers) == 0 {
		return ErrInvalidBrokers
	}
	conn, err := kafka.DialContext(ctx, "tcp", tm.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka broker: %w", err)
	}
	return conn.Close()
}

// CreateTopics creates topics through the cluster controller. Topics that
// already exist are logged and skipped.
func (tm *TopicManager) CreateTopics(ctx context.Context, topics ...TopicConfig) error {
	if len(tm.brokers) == 0 {
		return ErrInvalidBrokers
	}
	conn, err := kafka.DialContext(ctx, "tcp", tm.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get controller: %w", err)
	}

	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to connect to controller: %w", err)
	}
	defer controllerConn.Close()

	for _, tc := range topics {
		err := controllerConn.CreateTopics(tc.request())
		if errors.Is(err, kafka.TopicAlreadyExists) {
			tm.logger.Debug("topic exists", slog.String("topic", tc.Name))
			continue
		}
		if err != nil {
			return fmt.Errorf("create topic %s: %w", tc.Name, err)
		}
		tm.logger.Info("created topic",
			slog.String("topic", tc.Name), slog.Int("partitions", tc.Partitions))
	}

	return nil
}
