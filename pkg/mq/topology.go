package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName outbox 事件统一发布到这个 topic exchange
	ExchangeName = "events"
	// DLQExchangeName 不可重试的消息转发到这里
	DLQExchangeName = "events.dlq"
)

// dial 建立连接与 channel，并声明主交换机和死信交换机
func dial(url string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	for _, name := range []string{ExchangeName, DLQExchangeName} {
		if err := ch.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", name, err)
		}
	}
	return conn, ch, nil
}

// declareQueue 声明持久队列并绑定到 exchange
func declareQueue(ch *amqp091.Channel, name, routingKey, exchange string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind queue %s: %w", name, err)
	}
	return q, nil
}

// dlqName 每个消费队列对应一个死信队列
func dlqName(queue string) string {
	return queue + ".dlq"
}

// deadLetter 把处理失败的消息连同失败原因转发到死信交换机
func deadLetter(ctx context.Context, ch *amqp091.Channel, routingKey string, body []byte, reason, queue string) error {
	return ch.PublishWithContext(ctx,
		DLQExchangeName,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Headers: amqp091.Table{
				"x-original-error": reason,
				"x-source-queue":   queue,
				"x-failed-at":      time.Now().UTC().Format(time.RFC3339),
			},
		},
	)
}
