package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"lighthouse-api/logger"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of kafka.Writer the mailer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMailer hands rendered emails to a mail-delivery worker through a topic.
// WriteMessages is synchronous, so a nil error means the broker acknowledged the message.
type KafkaMailer struct {
	writer   messageWriter
	renderer Renderer
}

func NewKafkaMailer(brokers []string, topic string, renderer Renderer) *KafkaMailer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 5 * time.Second,
	}
	return &KafkaMailer{writer: w, renderer: renderer}
}

func (m *KafkaMailer) SendWelcome(ctx context.Context, to, username string) error {
	msg, err := m.renderer.Welcome(to, username)
	if err != nil {
		return err
	}
	return m.publish(ctx, msg)
}

func (m *KafkaMailer) SendPasswordReset(ctx context.Context, to, resetToken, username string) error {
	msg, err := m.renderer.PasswordReset(to, resetToken, username)
	if err != nil {
		return err
	}
	return m.publish(ctx, msg)
}

func (m *KafkaMailer) publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	err = m.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.To),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	})
	if err != nil {
		logger.Log.WithError(err).WithField("kind", msg.Kind).Error("Failed to publish email")
		return fmt.Errorf("kafka: publish %s: %w", msg.Kind, err)
	}
	return nil
}

func (m *KafkaMailer) Close() error {
	return m.writer.Close()
}
