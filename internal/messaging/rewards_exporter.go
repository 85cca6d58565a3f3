// Package messaging delivers granted rewards to downstream systems.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cyprus7/quest-engine/internal/models"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RewardsExportPayload - сообщение о выданных пользователю наградах.
type RewardsExportPayload struct {
	EventID         string                 `json:"event_id"`
	UserID          uuid.UUID              `json:"user_id"`
	QuestID         string                 `json:"quest_id"`
	ChestInstanceID *uuid.UUID             `json:"chest_instance_id,omitempty"`
	CombinationID   string                 `json:"combination_id,omitempty"`
	Rewards         []models.RewardApplied `json:"rewards"`
	OccurredAt      time.Time              `json:"occurred_at"`
}

// RewardsExporter is a best-effort sink for granted rewards.
// Ошибка экспорта не должна ломать запрос пользователя.
type RewardsExporter interface {
	Export(ctx context.Context, payload RewardsExportPayload) error
}

// amqpChannel is the subset of *amqp.Channel the exporter uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type rabbitMQRewardsExporter struct {
	channel   amqpChannel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQRewardsExporter opens a channel and declares the durable export queue.
func NewRabbitMQRewardsExporter(conn *amqp.Connection, queueName string, logger *zap.Logger) (RewardsExporter, func() error, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("rewards exporter: не удалось открыть канал: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("rewards exporter: не удалось объявить очередь '%s': %w", queueName, err)
	}
	logger.Info("Rewards export queue declared", zap.String("queue", queueName))
	return newRabbitMQRewardsExporter(ch, queueName, logger), ch.Close, nil
}

func newRabbitMQRewardsExporter(ch amqpChannel, queueName string, logger *zap.Logger) *rabbitMQRewardsExporter {
	return &rabbitMQRewardsExporter{
		channel:   ch,
		queueName: queueName,
		logger:    logger.Named("RabbitMQRewardsExporter"),
	}
}

func (p *rabbitMQRewardsExporter) Export(ctx context.Context, payload RewardsExportPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal rewards export payload: %w", err)
	}
	err = p.channel.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    payload.EventID,
			Timestamp:    payload.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish rewards export",
			zap.String("eventID", payload.EventID),
			zap.Stringer("userID", payload.UserID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish rewards export: %w", err)
	}
	p.logger.Debug("Rewards export published",
		zap.String("eventID", payload.EventID),
		zap.Stringer("userID", payload.UserID),
		zap.Int("rewards", len(payload.Rewards)),
	)
	return nil
}

type logRewardsExporter struct {
	logger *zap.Logger
}

// NewLogRewardsExporter only logs exports; used when RabbitMQ is not configured.
func NewLogRewardsExporter(logger *zap.Logger) RewardsExporter {
	return &logRewardsExporter{logger: logger.Named("LogRewardsExporter")}
}

func (e *logRewardsExporter) Export(_ context.Context, payload RewardsExportPayload) error {
	e.logger.Info("Rewards granted",
		zap.Stringer("userID", payload.UserID),
		zap.String("questID", payload.QuestID),
		zap.String("combinationID", payload.CombinationID),
		zap.Any("rewards", payload.Rewards),
	)
	return nil
}
