// Package events publishes computed profiles to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"wallet-profiler/internal/domain"
)

// Publisher announces freshly computed profiles.
type Publisher interface {
	PublishProfile(ctx context.Context, p *domain.WalletProfile) error
}

// Noop discards every event.
type Noop struct{}

// PublishProfile implements Publisher.
func (Noop) PublishProfile(context.Context, *domain.WalletProfile) error { return nil }

// ProfileComputed is the event payload.
type ProfileComputed struct {
	Type    string                `json:"type"`
	Emitted time.Time             `json:"emitted_at"`
	Profile *domain.WalletProfile `json:"profile"`
}

// EventTypeProfileComputed is ProfileComputed.Type.
const EventTypeProfileComputed = "profile.computed"

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures KafkaPublisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// KafkaPublisher writes ProfileComputed events keyed by wallet address,
// so every event for one wallet lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaPublisher creates a synchronous Kafka publisher.
func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 20 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: cfg.BatchTimeout,
			WriteTimeout: cfg.WriteTimeout,
			Compression:  kafka.Snappy,
		},
		now: time.Now,
	}
}

// PublishProfile implements Publisher.
func (k *KafkaPublisher) PublishProfile(ctx context.Context, p *domain.WalletProfile) error {
	data, err := json.Marshal(ProfileComputed{
		Type:    EventTypeProfileComputed,
		Emitted: k.now().UTC(),
		Profile: p,
	})
	if err != nil {
		return fmt.Errorf("marshal profile event: %w", err)
	}

	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(p.WalletAddress),
		Value: data,
	}); err != nil {
		return fmt.Errorf("write profile event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
