package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

// Queue: очередь заданий в RabbitMQ.
// Сообщение забирается через basic.get без автоподтверждения, поэтому до ack
// принадлежит этому каналу; nack с requeue возвращает его в очередь.
type Queue struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	confirms chan amqp.Confirmation
	name     string
	wait     time.Duration
	interval time.Duration
	mu       sync.Mutex
}

// NewQueue подключается к брокеру и объявляет очередь.
// wait: сколько Receive ждёт сообщения, опрашивая очередь с шагом interval.
func NewQueue(url, name string, wait, interval time.Duration) (*Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publish confirmations: %w", err)
	}

	_, err = channel.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	return &Queue{
		conn:     conn,
		channel:  channel,
		confirms: channel.NotifyPublish(make(chan amqp.Confirmation, 1)),
		name:     name,
		wait:     wait,
		interval: interval,
	}, nil
}

// Enqueue публикует задание и ждёт подтверждения брокера
func (q *Queue) Enqueue(ctx context.Context, req entity.JobRequest) error {
	body, err := entity.EncodeJobRequest(req)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// номер будущей публикации: по нему отличаем свой confirm от опоздавшего чужого
	seq := q.channel.GetNextPublishSeqNo()
	err = q.channel.PublishWithContext(
		ctx,
		"",     // exchange
		q.name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         []byte(body),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return awaitConfirm(ctx, q.confirms, seq)
}

// awaitConfirm ждёт подтверждения с тегом seq, пропуская подтверждения
// предыдущих публикаций, чьё ожидание уже истекло
func awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation, seq uint64) error {
	for {
		select {
		case confirmed, ok := <-confirms:
			if !ok {
				return errors.New("channel closed before publish confirmation")
			}
			if confirmed.DeliveryTag < seq {
				continue
			}
			if confirmed.DeliveryTag != seq || !confirmed.Ack {
				return fmt.Errorf("failed to receive publish confirmation for tag %d", seq)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("wait for publish confirmation: %w", ctx.Err())
		}
	}
}

// Receive забирает одно сообщение или возвращает nil после ожидания
func (q *Queue) Receive(ctx context.Context) (*entity.JobMessage, error) {
	deadline := time.Now().Add(q.wait)
	for {
		q.mu.Lock()
		d, ok, err := q.channel.Get(q.name, false)
		q.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to get message: %w", err)
		}
		if ok {
			return toJobMessage(d), nil
		}

		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.interval):
		}
	}
}

// Delete подтверждает доставку
func (q *Queue) Delete(ctx context.Context, msg *entity.JobMessage) error {
	tag, err := strconv.ParseUint(msg.DeliveryToken, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid delivery tag %q: %w", msg.DeliveryToken, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.channel.Ack(tag, false); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// Release возвращает сообщение в очередь
func (q *Queue) Release(ctx context.Context, msg *entity.JobMessage) error {
	tag, err := strconv.ParseUint(msg.DeliveryToken, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid delivery tag %q: %w", msg.DeliveryToken, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.channel.Nack(tag, false, true); err != nil {
		return fmt.Errorf("failed to nack message: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение
func (q *Queue) Close() {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}

// toJobMessage берёт job_id из MessageId, который проставляет Enqueue
func toJobMessage(d amqp.Delivery) *entity.JobMessage {
	id := d.MessageId
	if id == "" {
		// сообщение опубликовано не нами; id стабилен только в пределах этой доставки
		id = uuid.NewString()
	}
	return &entity.JobMessage{
		ID:            id,
		DeliveryToken: strconv.FormatUint(d.DeliveryTag, 10),
		Body:          string(d.Body),
	}
}

var (
	_ port.JobProducer = (*Queue)(nil)
	_ port.JobConsumer = (*Queue)(nil)
	_ port.Releaser    = (*Queue)(nil)
)
