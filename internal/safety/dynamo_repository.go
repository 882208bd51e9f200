package safety

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

// DynamoAPI is the subset of the DynamoDB client used by DynamoRepository.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Sort keys within an account partition.
const (
	profileSortKey     = "PROFILE"
	violationKeyPrefix = "VIOLATION#"
)

type dynamoRecord struct {
	AccountID         string     `dynamodbav:"account_id"`
	SK                string     `dynamodbav:"sk"`
	SafetyScore       int        `dynamodbav:"safety_score"`
	WarningCount      int        `dynamodbav:"warning_count"`
	SuspensionCount   int        `dynamodbav:"suspension_count"`
	IsSuspended       bool       `dynamodbav:"is_suspended"`
	SuspensionEndDate *time.Time `dynamodbav:"suspension_end_date,omitempty"`
	IsTerminated      bool       `dynamodbav:"is_terminated"`
	TerminatedAt      *time.Time `dynamodbav:"terminated_at,omitempty"`
	CreatedAt         time.Time  `dynamodbav:"created_at"`
	UpdatedAt         time.Time  `dynamodbav:"updated_at"`
}

func (d dynamoRecord) record() Record {
	return Record{
		AccountID:         d.AccountID,
		SafetyScore:       d.SafetyScore,
		WarningCount:      d.WarningCount,
		SuspensionCount:   d.SuspensionCount,
		IsSuspended:       d.IsSuspended,
		SuspensionEndDate: d.SuspensionEndDate,
		IsTerminated:      d.IsTerminated,
		TerminatedAt:      d.TerminatedAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type dynamoViolation struct {
	AccountID string    `dynamodbav:"account_id"`
	SK        string    `dynamodbav:"sk"`
	ID        string    `dynamodbav:"id"`
	Content   string    `dynamodbav:"content"`
	Type      string    `dynamodbav:"type"`
	Language  string    `dynamodbav:"language"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

// DynamoRepository keeps the safety record and violation log in a single
// table keyed by account_id (partition) and sk (sort).
type DynamoRepository struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

// NewDynamoRepository creates a DynamoDB-backed repository.
func NewDynamoRepository(client DynamoAPI, table string) *DynamoRepository {
	return &DynamoRepository{client: client, table: table, now: time.Now}
}

func (r *DynamoRepository) profileKey(accountID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"account_id": &types.AttributeValueMemberS{Value: accountID},
		"sk":         &types.AttributeValueMemberS{Value: profileSortKey},
	}
}

func (r *DynamoRepository) Create(ctx context.Context, accountID string) (Record, error) {
	rec := NewRecord(accountID, r.now().UTC())
	item, err := attributevalue.MarshalMap(dynamoRecord{
		AccountID:   rec.AccountID,
		SK:          profileSortKey,
		SafetyScore: rec.SafetyScore,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	})
	if err != nil {
		return Record{}, fmt.Errorf("safety: marshal record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(account_id)"),
	})
	if isConditionFailed(err) {
		return r.Get(ctx, accountID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("safety: put record: %w", err)
	}
	return rec, nil
}

func (r *DynamoRepository) Get(ctx context.Context, accountID string) (Record, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            r.profileKey(accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Record{}, fmt.Errorf("safety: get record: %w", err)
	}
	if len(out.Item) == 0 {
		return Record{}, fmt.Errorf("safety: get record: %w", ErrAccountNotFound)
	}
	var item dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return Record{}, fmt.Errorf("safety: unmarshal record: %w", err)
	}
	return item.record(), nil
}

// ApplyViolation writes the violation entry and the counter update in one
// transaction. The score is decremented in place when it stays non-negative
// and pinned to zero otherwise; both forms add to warning_count atomically.
func (r *DynamoRepository) ApplyViolation(ctx context.Context, v Violation, penalty int) (Record, error) {
	now := v.CreatedAt.UTC()
	item, err := attributevalue.MarshalMap(dynamoViolation{
		AccountID: v.AccountID,
		SK:        violationKeyPrefix + now.Format(time.RFC3339Nano) + "#" + v.ID,
		ID:        v.ID,
		Content:   v.Content,
		Type:      v.Type,
		Language:  v.Language,
		CreatedAt: now,
	})
	if err != nil {
		return Record{}, fmt.Errorf("safety: marshal violation: %w", err)
	}
	logEntry := &types.Put{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(sk)"),
	}

	one := &types.AttributeValueMemberN{Value: "1"}
	stamp := &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)}
	err = r.transact(ctx, logEntry, &types.Update{
		TableName:           aws.String(r.table),
		Key:                 r.profileKey(v.AccountID),
		UpdateExpression:    aws.String("SET safety_score = safety_score - :penalty, updated_at = :now ADD warning_count :one"),
		ConditionExpression: aws.String("attribute_exists(account_id) AND safety_score >= :penalty"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":penalty": &types.AttributeValueMemberN{Value: strconv.Itoa(penalty)},
			":one":     one,
			":now":     stamp,
		},
	})
	if profileConditionFailed(err) {
		err = r.transact(ctx, logEntry, &types.Update{
			TableName:           aws.String(r.table),
			Key:                 r.profileKey(v.AccountID),
			UpdateExpression:    aws.String("SET safety_score = :zero, updated_at = :now ADD warning_count :one"),
			ConditionExpression: aws.String("attribute_exists(account_id)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":zero": &types.AttributeValueMemberN{Value: "0"},
				":one":  one,
				":now":  stamp,
			},
		})
	}
	if profileConditionFailed(err) {
		return Record{}, fmt.Errorf("safety: apply violation: %w", ErrAccountNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("safety: apply violation: %w", err)
	}
	return r.Get(ctx, v.AccountID)
}

// transact applies the violation entry and the profile update together. The
// profile update is always the second item.
func (r *DynamoRepository) transact(ctx context.Context, put *types.Put, update *types.Update) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{{Put: put}, {Update: update}},
	})
	return err
}

func (r *DynamoRepository) Suspend(ctx context.Context, accountID string, until time.Time) (Record, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 r.profileKey(accountID),
		UpdateExpression:    aws.String("SET is_suspended = :yes, suspension_end_date = :until, updated_at = :now ADD suspension_count :one"),
		ConditionExpression: aws.String("attribute_exists(account_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":yes":   &types.AttributeValueMemberBOOL{Value: true},
			":until": &types.AttributeValueMemberS{Value: until.UTC().Format(time.RFC3339Nano)},
			":now":   &types.AttributeValueMemberS{Value: r.now().UTC().Format(time.RFC3339Nano)},
			":one":   &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return Record{}, fmt.Errorf("safety: suspend: %w", ErrAccountNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("safety: suspend: %w", err)
	}
	return decodeRecord(out.Attributes)
}

func (r *DynamoRepository) Terminate(ctx context.Context, accountID string, at time.Time) (Record, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 r.profileKey(accountID),
		UpdateExpression:    aws.String("SET is_terminated = :yes, terminated_at = if_not_exists(terminated_at, :at), updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(account_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":yes": &types.AttributeValueMemberBOOL{Value: true},
			":at":  &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
			":now": &types.AttributeValueMemberS{Value: r.now().UTC().Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return Record{}, fmt.Errorf("safety: terminate: %w", ErrAccountNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("safety: terminate: %w", err)
	}
	return decodeRecord(out.Attributes)
}

func (r *DynamoRepository) ListViolations(ctx context.Context, accountID string, limit int) ([]Violation, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("account_id = :account AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":account": &types.AttributeValueMemberS{Value: accountID},
			":prefix":  &types.AttributeValueMemberS{Value: violationKeyPrefix},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	out, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("safety: query violations: %w", err)
	}

	var items []dynamoViolation
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("safety: unmarshal violations: %w", err)
	}
	violations := make([]Violation, 0, len(items))
	for _, it := range items {
		violations = append(violations, Violation{
			ID:        it.ID,
			AccountID: it.AccountID,
			Content:   it.Content,
			Type:      it.Type,
			Language:  it.Language,
			CreatedAt: it.CreatedAt,
		})
	}
	return violations, nil
}

func decodeRecord(attrs map[string]types.AttributeValue) (Record, error) {
	var item dynamoRecord
	if err := attributevalue.UnmarshalMap(attrs, &item); err != nil {
		return Record{}, fmt.Errorf("safety: unmarshal record: %w", err)
	}
	return item.record(), nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// profileConditionFailed reports whether a transaction was cancelled by the
// profile update's condition.
func profileConditionFailed(err error) bool {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) || len(canceled.CancellationReasons) < 2 {
		return false
	}
	return aws.ToString(canceled.CancellationReasons[1].Code) == "ConditionalCheckFailed"
}

var _ Repository = (*DynamoRepository)(nil)
