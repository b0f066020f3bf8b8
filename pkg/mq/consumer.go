package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"symbio/pkg/metrics"
	"symbio/pkg/otel"
	"symbio/pkg/trace"
	"symbio/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	tag        string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}

	closeAll := func() {
		ch.Close()
		conn.Close()
	}

	// 死信队列与消费队列同名加 .dlq 后缀
	if _, err := declareQueue(ch, dlqName(queueName), routingKey, DLQExchangeName); err != nil {
		closeAll()
		return nil, err
	}

	q, err := declareQueue(ch, queueName, routingKey, ExchangeName)
	if err != nil {
		closeAll()
		return nil, err
	}

	if err := ch.Qos(16, 0, false); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		tag:        queueName + ".consumer",
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// IsConnected reports whether the underlying connection is open.
func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// Stop cancels the delivery stream; StartConsuming returns once in-flight
// messages are settled.
func (c *Consumer) Stop() {
	if c.channel != nil {
		if err := c.channel.Cancel(c.tag, false); err != nil {
			c.logger.Warn("Failed to cancel consumer", zap.String("queue", c.queue.Name), zap.Error(err))
		}
	}
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.tag,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	// 保证每条消息都会被 ack 或 nack
	for msg := range deliveries {
		c.handle(msg)
	}

	c.logger.Info("Consumer delivery channel closed", zap.String("queue", c.queue.Name))
	return nil
}

func (c *Consumer) handle(msg amqp091.Delivery) {
	start := time.Now()
	ctx := context.Background()
	if traceID, ok := msg.Headers[trace.HeaderName].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	ctx, span := otel.MQConsumeSpan(ctx, c.routingKey, c.queue.Name, msg.Headers)
	defer span.End()
	log := c.logger.With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
		zap.String("trace_id", trace.FromContext(ctx)),
	)

	defer func() {
		metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, time.Since(start))
	}()

	// Panic 恢复：确保即使 handler panic 也能正确处理消息
	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			if err := msg.Nack(false, false); err != nil {
				log.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	log.Debug("Received message", zap.Int("message_size", len(msg.Body)))

	if err := c.handler(ctx, msg.Body); err != nil {
		span.RecordError(err)
		retryable, errType := util.IsRetryableError(err)
		log.Error("Handler error",
			zap.String("error_type", errType),
			zap.Bool("retryable", retryable),
			zap.Error(err),
		)

		if retryable {
			// 可重试 → 重新入队
			if err := msg.Nack(false, true); err != nil {
				log.Error("Failed to nack message", zap.Error(err))
			}
			return
		}

		// 不可重试 → 进入死信队列并确认
		if err := deadLetter(ctx, c.channel, c.routingKey, msg.Body, err.Error(), c.queue.Name); err != nil {
			log.Error("Failed to publish to DLQ", zap.Error(err))
			_ = msg.Nack(false, true)
			return
		}
		if err := msg.Ack(false); err != nil {
			log.Error("Failed to ack dead-lettered message", zap.Error(err))
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
	} else {
		log.Debug("Message processed successfully")
	}
}
