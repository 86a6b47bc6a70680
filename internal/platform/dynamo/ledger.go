package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/idempotency"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
)

const (
	attrEventKey    = "event_key"
	attrGroup       = "consumer_group"
	attrProcessedAt = "processed_at"
	attrExpiresAt   = "expires_at"
)

// API is the subset of the DynamoDB client used by Ledger.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Ledger implements idempotency.Ledger on a DynamoDB table.
type Ledger struct {
	client    API
	table     string
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

var _ idempotency.Ledger = (*Ledger)(nil)

// NewLedger returns a Ledger writing to table. Claims expire retention after
// they are recorded.
func NewLedger(client API, table string, retention time.Duration, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		client:    client,
		table:     table,
		retention: retention,
		logger:    logger.With(slog.String("component", "dynamo_ledger")),
		now:       time.Now,
	}
}

// NewClient builds a DynamoDB client from the ledger configuration. An
// endpoint override points the client at a local emulator.
func NewClient(ctx context.Context, cfg config.DynamoDBConfig) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func itemKey(eventKey, group string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrEventKey: &types.AttributeValueMemberS{Value: eventKey},
		attrGroup:    &types.AttributeValueMemberS{Value: group},
	}
}

func unixAttr(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

// TryClaim implements idempotency.Ledger.TryClaim
func (l *Ledger) TryClaim(ctx context.Context, eventKey, group string) (bool, error) {
	now := l.now().UTC()
	item := itemKey(eventKey, group)
	item[attrProcessedAt] = unixAttr(now)
	item[attrExpiresAt] = unixAttr(now.Add(l.retention))

	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{
			"#k": attrEventKey,
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return false, nil
		}
		logger.FromContextOrDefault(ctx, l.logger).Error("failed to claim event",
			slog.String("error", err.Error()),
			slog.String("event_key", eventKey),
			slog.String("consumer_group", group))
		return false, fmt.Errorf("failed to claim event: %w", err)
	}
	return true, nil
}

// Release implements idempotency.Ledger.Release
func (l *Ledger) Release(ctx context.Context, eventKey, group string) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.table),
		Key:       itemKey(eventKey, group),
	})
	if err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}

// Purge implements idempotency.Ledger.Purge. It scans for claims older than
// before and deletes them one by one.
func (l *Ledger) Purge(ctx context.Context, before time.Time) (int64, error) {
	var (
		removed  int64
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := l.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(l.table),
			FilterExpression:     aws.String("#p < :before"),
			ProjectionExpression: aws.String("#k, #g"),
			ExpressionAttributeNames: map[string]string{
				"#p": attrProcessedAt,
				"#k": attrEventKey,
				"#g": attrGroup,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":before": unixAttr(before),
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return removed, fmt.Errorf("failed to scan claims: %w", err)
		}

		for _, item := range out.Items {
			if _, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(l.table),
				Key: map[string]types.AttributeValue{
					attrEventKey: item[attrEventKey],
					attrGroup:    item[attrGroup],
				},
			}); err != nil {
				return removed, fmt.Errorf("failed to delete claim: %w", err)
			}
			removed++
		}

		if len(out.LastEvaluatedKey) == 0 {
			return removed, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
