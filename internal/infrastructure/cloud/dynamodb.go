package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"vision-relay/internal/domain/entity"
	"vision-relay/internal/domain/port"
)

type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoResultStore хранит итоги в таблице DynamoDB с ключом prediction_id
type DynamoResultStore struct {
	client dynamoAPI
	table  string
}

func NewDynamoResultStore(client dynamoAPI, table string) *DynamoResultStore {
	return &DynamoResultStore{client: client, table: table}
}

// Put записывает итог; PutItem заменяет запись с тем же ключом целиком
func (s *DynamoResultStore) Put(ctx context.Context, summary *entity.JobSummary) error {
	item, err := attributevalue.MarshalMap(summary.ToRecord())
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// Get читает итог по job_id
func (s *DynamoResultStore) Get(ctx context.Context, jobID string) (*entity.JobSummary, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"prediction_id": &types.AttributeValueMemberS{Value: jobID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: %s", entity.ErrSummaryNotFound, jobID)
	}

	var rec entity.SummaryRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return rec.ToSummary()
}

var _ port.ResultStore = (*DynamoResultStore)(nil)
