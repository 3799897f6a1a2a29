package queue

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/streadway/amqp"
)

// AMQPQueue publishes batch jobs to RabbitMQ. Consumption lives in the
// worker binary, so Subscribe is intentionally unsupported here.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPQueue(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening RabbitMQ channel: %w", err)
	}

	for _, topic := range []string{TopicBatchGenerate, TopicBatchSend} {
		if _, err := ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declaring queue %s: %w", topic, err)
		}
	}

	return &AMQPQueue{conn: conn, ch: ch}, nil
}

// Publish marshals the batch ID into a durable JSON job message.
func (q *AMQPQueue) Publish(topic string, payload any) error {
	batchID, ok := payload.(int)
	if !ok {
		return fmt.Errorf("expected int batch ID payload, got %T", payload)
	}

	body, err := json.Marshal(Job{BatchID: batchID})
	if err != nil {
		return err
	}

	err = q.ch.Publish(
		"",    // default exchange
		topic, // routing key = queue name
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		log.Println("⚠️ failed to publish job to", topic, ":", err)
		return err
	}
	return nil
}

func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	return fmt.Errorf("AMQPQueue is publish-only, run the worker binary to consume %s", topic)
}

func (q *AMQPQueue) Close() {
	if q.ch != nil {
		q.ch.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}

var _ Queue = (*AMQPQueue)(nil)
