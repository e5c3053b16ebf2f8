package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tustockya/tustockya-backend/internal/config"
)

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
	config   *config.Config
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(cfg *config.Config, logger *zap.Logger) (EventPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = cfg.KafkaClientID
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Retry.Max = cfg.KafkaRetries
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	switch cfg.KafkaAcks {
	case "0":
		saramaConfig.Producer.RequiredAcks = sarama.NoResponse
	case "1":
		saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	default:
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	}

	producer, err := sarama.NewSyncProducer(cfg.KafkaBrokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer: producer,
		logger:   logger,
		config:   cfg,
	}, nil
}

// Publish publishes an event to Kafka with retries and exponential backoff
func (p *KafkaEventPublisher) Publish(ctx context.Context, event interface{}) error {
	topic, err := p.topicForEvent(event)
	if err != nil {
		return fmt.Errorf("failed to determine topic: %w", err)
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(eventJSON),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event-type"),
				Value: []byte(eventType(event)),
			},
			{
				Key:   []byte("event-id"),
				Value: []byte(uuid.New().String()),
			},
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().UTC().Format(time.RFC3339)),
			},
		},
	}
	if key := partitionKey(event); key != "" {
		message.Key = sarama.StringEncoder(key)
	}

	maxRetries := p.config.KafkaRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		partition, offset, err := p.producer.SendMessage(message)
		if err == nil {
			p.logger.Info("event published",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Int64("offset", offset),
				zap.String("event-type", eventType(event)),
				zap.Int("attempt", attempt+1),
			)
			return nil
		}
		lastErr = err
		p.logger.Warn("failed to publish event, retrying",
			zap.String("topic", topic),
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
		)

		if attempt < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("failed to publish event after %d attempts: %w", maxRetries, lastErr)
}

func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}

func (p *KafkaEventPublisher) topicForEvent(event interface{}) (string, error) {
	switch event.(type) {
	case TransferStatusChangedEvent, *TransferStatusChangedEvent:
		return p.config.KafkaTopicTransfers, nil
	case StockAdjustedEvent, *StockAdjustedEvent,
		MovementReversedEvent, *MovementReversedEvent:
		return p.config.KafkaTopicInventory, nil
	default:
		return "", fmt.Errorf("unknown event type %T", event)
	}
}

func eventType(event interface{}) string {
	switch event.(type) {
	case TransferStatusChangedEvent, *TransferStatusChangedEvent:
		return "transfer.status_changed"
	case StockAdjustedEvent, *StockAdjustedEvent:
		return "inventory.stock_adjusted"
	case MovementReversedEvent, *MovementReversedEvent:
		return "inventory.movement_reversed"
	default:
		return fmt.Sprintf("%T", event)
	}
}

// partitionKey keeps all events for the same transfer or variant on one
// partition so consumers see them in order.
func partitionKey(event interface{}) string {
	switch e := event.(type) {
	case TransferStatusChangedEvent:
		return e.TransferID.String()
	case *TransferStatusChangedEvent:
		return e.TransferID.String()
	case StockAdjustedEvent:
		return e.ReferenceCode + "/" + e.Size
	case *StockAdjustedEvent:
		return e.ReferenceCode + "/" + e.Size
	case MovementReversedEvent:
		return e.ReferenceCode + "/" + e.Size
	case *MovementReversedEvent:
		return e.ReferenceCode + "/" + e.Size
	default:
		return ""
	}
}
