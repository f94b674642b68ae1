package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/smapp/messaging-service/internal/domain/entity"
	"github.com/smapp/messaging-service/internal/ports/out"
)

const (
	// Kafka Topic 定义
	TopicMessageCreated = "messaging.message.created"
	TopicUserStatus     = "messaging.user.status"
)

// userStatusEvent 用户上下线事件的 Kafka 载荷
type userStatusEvent struct {
	UserID    uint64 `json:"user_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// KafkaEventPublisher Kafka事件发布器
type KafkaEventPublisher struct {
	producer sarama.SyncProducer
}

// NewKafkaEventPublisher 创建Kafka事件发布器
func NewKafkaEventPublisher(brokers []string) (out.EventPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Timeout = 10 * time.Second
	// 确保消息顺序性 - 相同会话的消息发到同一分区
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{producer: producer}, nil
}

func (p *KafkaEventPublisher) PublishMessageCreated(ctx context.Context, message *entity.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message created event failed: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: TopicMessageCreated,
		Key:   sarama.StringEncoder(fmt.Sprintf("%d", message.ConversationID)), // 按会话分区
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte("message_created")},
			{Key: []byte("timestamp"), Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		},
	}

	_, _, err = p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish message created event failed: %w", err)
	}

	return nil
}

func (p *KafkaEventPublisher) PublishUserStatus(ctx context.Context, userID uint64, status string) error {
	event := userStatusEvent{
		UserID:    userID,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal user status event failed: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: TopicUserStatus,
		Key:   sarama.StringEncoder(fmt.Sprintf("%d", userID)), // 按用户分区，保证同一用户的状态有序
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte("user_status")},
			{Key: []byte("timestamp"), Value: []byte(event.Timestamp)},
		},
	}

	_, _, err = p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish user status event failed: %w", err)
	}

	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}
