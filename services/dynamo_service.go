package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"cardvault_server/models"
	"cardvault_server/utils"
)

const (
	maxBatchSize       = 25
	maxBatchAttempts   = 3
	conditionFailedMsg = "ConditionalCheckFailed"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoService.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoService implements Store on a single DynamoDB table.
type DynamoService struct {
	Client    DynamoAPI
	TableName string
	// EntityTypeIndex names a GSI keyed on GSI1PK/GSI1SK. When empty, ListByEntityType scans.
	EntityTypeIndex string
	Logger          *zap.Logger
	Now             func() time.Time
}

var _ Store = (*DynamoService)(nil)

// LoadAWSConfig loads the shared AWS configuration for region.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// InitializeDynamoDBClient initializes the DynamoDB client. A non-empty endpoint points it at
// DynamoDB Local with static dummy credentials.
func InitializeDynamoDBClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.Credentials = credentials.NewStaticCredentialsProvider("local", "local", "")
		}
	})
}

func (ds *DynamoService) now() string {
	if ds.Now != nil {
		return models.FormatTimestamp(ds.Now())
	}
	return models.FormatTimestamp(time.Now())
}

func (ds *DynamoService) logger() *zap.Logger {
	if ds.Logger == nil {
		return zap.NewNop()
	}
	return ds.Logger
}

// logFailure records a failed call together with the AWS error code, when there is one.
func (ds *DynamoService) logFailure(operation string, err error) {
	fields := []zap.Field{zap.String("operation", operation), zap.String("table", ds.TableName), zap.Error(err)}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		fields = append(fields, zap.String("awsCode", apiErr.ErrorCode()))
	}
	ds.logger().Warn("dynamodb request failed", fields...)
}

// PutItem inserts or replaces an item in the table
func (ds *DynamoService) PutItem(ctx context.Context, item interface{}) error {
	marshaledItem, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(ds.TableName),
		Item:      marshaledItem,
	})
	if err != nil {
		ds.logFailure("PutItem", err)
		return fmt.Errorf("failed to put item in table '%s': %w", ds.TableName, err)
	}

	key := utils.KeyFromItem(marshaledItem)
	ds.logger().Debug("item stored", zap.String("pk", key.PK), zap.String("sk", key.SK))
	return nil
}

// GetItem retrieves an item from DynamoDB
func (ds *DynamoService) GetItem(ctx context.Context, key models.Key, out interface{}) (bool, error) {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(ds.TableName),
		Key:       utils.KeyAttributes(key),
	})
	if err != nil {
		ds.logFailure("GetItem", err)
		return false, fmt.Errorf("failed to get item from table '%s': %w", ds.TableName, err)
	}

	if output.Item == nil {
		return false, nil
	}

	if err := attributevalue.UnmarshalMap(output.Item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal item %s/%s: %w", key.PK, key.SK, err)
	}
	return true, nil
}

// QueryByPrefix queries one partition for sort keys beginning with skPrefix, following pagination up to the limit
func (ds *DynamoService) QueryByPrefix(ctx context.Context, pk, skPrefix string, opts QueryOptions, out interface{}) error {
	keyCondition := expression.Key(models.AttrPK).Equal(expression.Value(pk)).
		And(expression.Key(models.AttrSK).BeginsWith(skPrefix))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(ds.TableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(opts.Ascending),
	}

	items, err := ds.queryAll(ctx, input, opts.Limit)
	if err != nil {
		return err
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal query result: %w", err)
	}
	return nil
}

func (ds *DynamoService) queryAll(ctx context.Context, input *dynamodb.QueryInput, limit int) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		if limit > 0 {
			input.Limit = aws.Int32(int32(limit - len(items)))
		}

		output, err := ds.Client.Query(ctx, input)
		if err != nil {
			ds.logFailure("Query", err)
			return nil, fmt.Errorf("failed to query table '%s': %w", ds.TableName, err)
		}
		items = append(items, output.Items...)

		if output.LastEvaluatedKey == nil || (limit > 0 && len(items) >= limit) {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// UpdateCounter adds delta to a numeric attribute with a single ADD update
func (ds *DynamoService) UpdateCounter(ctx context.Context, key models.Key, field string, delta int) (int, error) {
	update := expression.Add(expression.Name(field), expression.Value(delta)).
		Set(expression.Name(models.AttrUpdatedAt), expression.Value(ds.now()))
	condition := expression.AttributeExists(expression.Name(models.AttrPK))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build counter expression: %w", err)
	}

	output, err := ds.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(ds.TableName),
		Key:                       utils.KeyAttributes(key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrNotFound
		}
		ds.logFailure("UpdateItem", err)
		return 0, fmt.Errorf("failed to update counter '%s' on %s/%s: %w", field, key.PK, key.SK, err)
	}

	value := utils.ExtractInt(output.Attributes, field)
	ds.logger().Debug("counter updated",
		zap.String("pk", key.PK),
		zap.String("sk", key.SK),
		zap.String("field", field),
		zap.Int("delta", delta),
		zap.Int("value", value),
	)
	return value, nil
}

// UpdateFields performs a partial SET on an existing item, guarded by the expected values
func (ds *DynamoService) UpdateFields(ctx context.Context, key models.Key, set map[string]interface{}, expect map[string]interface{}) error {
	update := expression.Set(expression.Name(models.AttrUpdatedAt), expression.Value(ds.now()))
	for field, value := range set {
		update = update.Set(expression.Name(field), expression.Value(value))
	}

	condition := expression.AttributeExists(expression.Name(models.AttrPK))
	for field, value := range expect {
		condition = condition.And(expression.Name(field).Equal(expression.Value(value)))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return fmt.Errorf("failed to build update expression: %w", err)
	}

	_, err = ds.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(ds.TableName),
		Key:                       utils.KeyAttributes(key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConditionFailed
		}
		ds.logFailure("UpdateItem", err)
		return fmt.Errorf("failed to update item %s/%s: %w", key.PK, key.SK, err)
	}
	return nil
}

// DeleteItem removes an item from DynamoDB
func (ds *DynamoService) DeleteItem(ctx context.Context, key models.Key) error {
	_, err := ds.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(ds.TableName),
		Key:       utils.KeyAttributes(key),
	})
	if err != nil {
		ds.logFailure("DeleteItem", err)
		return fmt.Errorf("failed to delete item from table '%s': %w", ds.TableName, err)
	}
	return nil
}

// DeleteItems deletes keys in batches of 25, retrying unprocessed requests
func (ds *DynamoService) DeleteItems(ctx context.Context, keys []models.Key) error {
	requests := make([]types.WriteRequest, 0, len(keys))
	for _, key := range keys {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: utils.KeyAttributes(key)},
		})
	}

	for i := 0; i < len(requests); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(requests) {
			end = len(requests)
		}

		pending := requests[i:end]
		for attempt := 1; len(pending) > 0; attempt++ {
			if attempt > maxBatchAttempts {
				return fmt.Errorf("failed to delete %d items from table '%s' after %d attempts", len(pending), ds.TableName, maxBatchAttempts)
			}

			output, err := ds.Client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{ds.TableName: pending},
			})
			if err != nil {
				ds.logFailure("BatchWriteItem", err)
				return fmt.Errorf("failed to batch write items to table '%s': %w", ds.TableName, err)
			}
			pending = output.UnprocessedItems[ds.TableName]
		}
	}
	return nil
}

// ListByEntityType queries the entity-type index when configured, otherwise scans with a filter
func (ds *DynamoService) ListByEntityType(ctx context.Context, entityType string, limit int, out interface{}) error {
	var (
		items []map[string]types.AttributeValue
		err   error
	)
	if ds.EntityTypeIndex != "" {
		items, err = ds.queryEntityIndex(ctx, entityType, limit)
	} else {
		items, err = ds.scanEntityType(ctx, entityType, limit)
	}
	if err != nil {
		return err
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s items: %w", entityType, err)
	}
	return nil
}

func (ds *DynamoService) queryEntityIndex(ctx context.Context, entityType string, limit int) ([]map[string]types.AttributeValue, error) {
	keyCondition := expression.Key(models.AttrGSI1PK).Equal(expression.Value(entityType))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build index expression: %w", err)
	}

	return ds.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(ds.TableName),
		IndexName:                 aws.String(ds.EntityTypeIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}, limit)
}

// scanEntityType reads the whole table. Cost grows with table size, not with the number of matches.
func (ds *DynamoService) scanEntityType(ctx context.Context, entityType string, limit int) ([]map[string]types.AttributeValue, error) {
	filter := expression.Name(models.AttrEntityType).Equal(expression.Value(entityType))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scan expression: %w", err)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(ds.TableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var items []map[string]types.AttributeValue
	for {
		output, err := ds.Client.Scan(ctx, input)
		if err != nil {
			ds.logFailure("Scan", err)
			return nil, fmt.Errorf("failed to scan table '%s': %w", ds.TableName, err)
		}
		items = append(items, output.Items...)

		if output.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	ds.logger().Warn("listed entities with a full table scan",
		zap.String("entityType", entityType),
		zap.Int("matched", len(items)),
	)

	// Scan order is arbitrary; match the index query, newest first.
	sort.SliceStable(items, func(i, j int) bool {
		return utils.ExtractString(items[i], models.AttrGSI1SK) > utils.ExtractString(items[j], models.AttrGSI1SK)
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// TransactWrite executes ops as one TransactWriteItems call
func (ds *DynamoService) TransactWrite(ctx context.Context, ops ...WriteOp) error {
	if len(ops) == 0 {
		return nil
	}

	items := make([]types.TransactWriteItem, 0, len(ops))
	for i, op := range ops {
		item, err := ds.transactItem(op)
		if err != nil {
			return fmt.Errorf("failed to build transaction operation %d: %w", i, err)
		}
		items = append(items, item)
	}

	_, err := ds.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var cancelled *types.TransactionCanceledException
		if errors.As(err, &cancelled) {
			for i, reason := range cancelled.CancellationReasons {
				if aws.ToString(reason.Code) == conditionFailedMsg {
					return &ConditionFailedError{Index: i}
				}
			}
		}
		ds.logFailure("TransactWriteItems", err)
		return fmt.Errorf("failed to write transaction to table '%s': %w", ds.TableName, err)
	}
	return nil
}

func (ds *DynamoService) transactItem(op WriteOp) (types.TransactWriteItem, error) {
	switch op.Kind {
	case OpPut:
		item, err := attributevalue.MarshalMap(op.Item)
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("failed to marshal item: %w", err)
		}
		put := &types.Put{TableName: aws.String(ds.TableName), Item: item}
		if cond, ok := existenceCondition(op.Condition); ok {
			expr, err := expression.NewBuilder().WithCondition(cond).Build()
			if err != nil {
				return types.TransactWriteItem{}, err
			}
			put.ConditionExpression = expr.Condition()
			put.ExpressionAttributeNames = expr.Names()
			put.ExpressionAttributeValues = expr.Values()
		}
		return types.TransactWriteItem{Put: put}, nil

	case OpDelete:
		del := &types.Delete{TableName: aws.String(ds.TableName), Key: utils.KeyAttributes(op.Key)}
		if cond, ok := existenceCondition(op.Condition); ok {
			expr, err := expression.NewBuilder().WithCondition(cond).Build()
			if err != nil {
				return types.TransactWriteItem{}, err
			}
			del.ConditionExpression = expr.Condition()
			del.ExpressionAttributeNames = expr.Names()
			del.ExpressionAttributeValues = expr.Values()
		}
		return types.TransactWriteItem{Delete: del}, nil

	case OpAdd:
		update := expression.Add(expression.Name(op.Field), expression.Value(op.Delta)).
			Set(expression.Name(models.AttrUpdatedAt), expression.Value(ds.now()))
		builder := expression.NewBuilder().WithUpdate(update)
		if cond, ok := existenceCondition(op.Condition); ok {
			builder = builder.WithCondition(cond)
		}
		expr, err := builder.Build()
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		return types.TransactWriteItem{Update: &types.Update{
			TableName:                 aws.String(ds.TableName),
			Key:                       utils.KeyAttributes(op.Key),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}}, nil

	case OpCheck:
		cond, ok := existenceCondition(op.Condition)
		if !ok {
			return types.TransactWriteItem{}, errors.New("condition check requires a condition")
		}
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		return types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(ds.TableName),
			Key:                       utils.KeyAttributes(op.Key),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}}, nil
	}
	return types.TransactWriteItem{}, fmt.Errorf("unknown operation kind %d", op.Kind)
}

func existenceCondition(cond Condition) (expression.ConditionBuilder, bool) {
	switch cond {
	case CondExists:
		return expression.AttributeExists(expression.Name(models.AttrPK)), true
	case CondNotExists:
		return expression.AttributeNotExists(expression.Name(models.AttrPK)), true
	}
	return expression.ConditionBuilder{}, false
}
