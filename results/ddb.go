package results

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoWriter publishes run records to a DynamoDB table, one item per run.
//
// Table schema:
//   - Partition key: run_name (string)
//   - Sort key: created_at (string, RFC 3339)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name simtable-results \
//	  --attribute-definitions AttributeName=run_name,AttributeType=S AttributeName=created_at,AttributeType=S \
//	  --key-schema AttributeName=run_name,KeyType=HASH AttributeName=created_at,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DynamoWriter struct {
	client    DDBClient
	tableName string
}

// NewDynamoWriter creates a DynamoDB-backed results writer.
func NewDynamoWriter(client DDBClient, tableName string) *DynamoWriter {
	return &DynamoWriter{
		client:    client,
		tableName: tableName,
	}
}

// Write puts the run record as one DynamoDB item.
func (w *DynamoWriter) Write(ctx context.Context, run Run) error {
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	scores := make(map[string]types.AttributeValue, len(run.Scores))
	for name, v := range run.Scores {
		scores[name] = &types.AttributeValueMemberN{Value: formatFloat(v)}
	}

	_, err := w.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(w.tableName),
		Item: map[string]types.AttributeValue{
			"run_name":      &types.AttributeValueMemberS{Value: run.Name},
			"created_at":    &types.AttributeValueMemberS{Value: createdAt.Format(time.RFC3339Nano)},
			"dataset":       &types.AttributeValueMemberS{Value: run.Dataset},
			"metric":        &types.AttributeValueMemberS{Value: run.Metric},
			"table_size":    &types.AttributeValueMemberN{Value: strconv.Itoa(run.TableSize)},
			"seed":          &types.AttributeValueMemberN{Value: strconv.FormatInt(run.Seed, 10)},
			"scores":        &types.AttributeValueMemberM{Value: scores},
			"build_seconds": &types.AttributeValueMemberN{Value: formatFloat(run.BuildSeconds)},
			"eval_seconds":  &types.AttributeValueMemberN{Value: formatFloat(run.EvalSeconds)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put run %s to DynamoDB: %w", run.Name, err)
	}
	return nil
}

// Flush is a no-op: every run is published on Write.
func (w *DynamoWriter) Flush(context.Context) error { return nil }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
