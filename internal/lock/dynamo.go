package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoStore backs the lock with a DynamoDB table (partition key "name").
// Conditional writes give the same atomic steal/heartbeat/release semantics
// as the Postgres table without a relational database in the deployment.
type DynamoStore struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoStore(client *dynamodb.Client, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

type dynamoLockItem struct {
	Name       string `dynamodbav:"name"`
	Holder     string `dynamodbav:"holder"`
	AcquiredAt int64  `dynamodbav:"acquired_at"`
}

func (s *DynamoStore) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	now := time.Now()
	item, err := attributevalue.MarshalMap(dynamoLockItem{
		Name:       name,
		Holder:     holder,
		AcquiredAt: now.UnixMilli(),
	})
	if err != nil {
		return false, fmt.Errorf("marshal lock item: %w", err)
	}

	cutoff := now.Add(-ttl).UnixMilli()
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#n) OR acquired_at < :cutoff OR holder = :holder"),
		ExpressionAttributeNames: map[string]string{
			"#n": "name",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff, 10)},
			":holder": &types.AttributeValueMemberS{Value: holder},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return false, nil
		}
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return true, nil
}

func (s *DynamoStore) Heartbeat(ctx context.Context, name, holder string) (bool, error) {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
		},
		UpdateExpression:    aws.String("SET acquired_at = :now"),
		ConditionExpression: aws.String("holder = :holder"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":    &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().UnixMilli(), 10)},
			":holder": &types.AttributeValueMemberS{Value: holder},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return false, nil
		}
		return false, fmt.Errorf("heartbeat lock %s: %w", name, err)
	}
	return true, nil
}

func (s *DynamoStore) Release(ctx context.Context, name, holder string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("holder = :holder"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":holder": &types.AttributeValueMemberS{Value: holder},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			// Lock already stolen or gone; release is a no-op then.
			return nil
		}
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
