package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue: очередь заданий в SQS.
// Неподтверждённое сообщение возвращается само по таймауту видимости очереди.
type SQSQueue struct {
	client      sqsAPI
	queueURL    string
	waitSeconds int32
}

// NewSQSQueue создаёт очередь; waitSeconds: long polling, не больше 20 секунд
func NewSQSQueue(client sqsAPI, queueURL string, waitSeconds int32) *SQSQueue {
	if waitSeconds < 0 {
		waitSeconds = 0
	}
	if waitSeconds > 20 {
		waitSeconds = 20
	}
	return &SQSQueue{client: client, queueURL: queueURL, waitSeconds: waitSeconds}
}

// Enqueue отправляет задание
func (q *SQSQueue) Enqueue(ctx context.Context, req entity.JobRequest) error {
	body, err := entity.EncodeJobRequest(req)
	if err != nil {
		return err
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Receive забирает не больше одного сообщения
func (q *SQSQueue) Receive(ctx context.Context) (*entity.JobMessage, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     q.waitSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	m := out.Messages[0]
	return &entity.JobMessage{
		ID:            aws.ToString(m.MessageId),
		DeliveryToken: aws.ToString(m.ReceiptHandle),
		Body:          aws.ToString(m.Body),
	}, nil
}

// Delete удаляет сообщение по receipt handle этой доставки
func (q *SQSQueue) Delete(ctx context.Context, msg *entity.JobMessage) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(msg.DeliveryToken),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

var (
	_ port.JobProducer = (*SQSQueue)(nil)
	_ port.JobConsumer = (*SQSQueue)(nil)
)
