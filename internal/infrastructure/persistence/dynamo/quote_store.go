package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/domain/revision"
	"go.uber.org/zap"
)

// DefaultTableName is used when no table is configured
const DefaultTableName = "quotes"

// API is the subset of the DynamoDB client the quote store uses
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// QuoteStore implements port.QuoteStore on a single DynamoDB table.
//
// Table requirements:
//   - PK: pk (string), the quote id
//   - SK: sk (string), "QUOTE" for the quote row, "EDIT#<version_from>" for edits
type QuoteStore struct {
	ddb       API
	tableName string
	logger    *zap.Logger
}

// NewQuoteStore creates a DynamoDB quote store
func NewQuoteStore(ddb API, tableName string, logger *zap.Logger) *QuoteStore {
	if tableName == "" {
		tableName = DefaultTableName
	}
	return &QuoteStore{
		ddb:       ddb,
		tableName: tableName,
		logger:    logger,
	}
}

func quoteKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: id},
		"sk": &types.AttributeValueMemberS{Value: quoteSortKey},
	}
}

// CreateQuote puts the quote row; an existing id is rejected
func (r *QuoteStore) CreateQuote(ctx context.Context, quote *entity.Quote, items []entity.QuoteItem) error {
	av, err := attributevalue.MarshalMap(toQuoteRecord(quote, items, revision.CalculateTotal(items)))
	if err != nil {
		return fmt.Errorf("failed to encode quote: %w", err)
	}

	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": "pk",
		},
	})
	if err != nil {
		r.logger.Error("Failed to create quote", zap.Error(err), zap.String("quote_id", quote.ID))
		return fmt.Errorf("failed to create quote: %w", err)
	}
	return nil
}

// LoadQuote reads the quote row with a consistent read
func (r *QuoteStore) LoadQuote(ctx context.Context, id string) (*entity.Quote, []entity.QuoteItem, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            quoteKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get quote: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", port.ErrQuoteNotFound, id)
	}

	var rec quoteRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	q, items := fromQuoteRecord(rec)
	return q, revision.Recompute(sortItems(items)), nil
}

// CommitQuoteVersion writes the new items and the edit row in one transaction.
// The update is conditioned on the expected version and an unanswered status,
// so a concurrent commit or an accepted/rejected quote cancels the transaction.
func (r *QuoteStore) CommitQuoteVersion(ctx context.Context, id string, expectedVersion int, items []entity.QuoteItem, edit *entity.QuoteEdit) (int, error) {
	if edit.VersionFrom != expectedVersion || edit.VersionTo != expectedVersion+1 {
		return 0, fmt.Errorf("edit spans %d->%d, expected %d->%d", edit.VersionFrom, edit.VersionTo, expectedVersion, expectedVersion+1)
	}

	itemsAV, err := attributevalue.Marshal(toItemRecords(items))
	if err != nil {
		return 0, fmt.Errorf("failed to encode items: %w", err)
	}
	editRec, err := toEditRecord(id, edit)
	if err != nil {
		return 0, err
	}
	editAV, err := attributevalue.MarshalMap(editRec)
	if err != nil {
		return 0, fmt.Errorf("failed to encode edit: %w", err)
	}

	newVersion := expectedVersion + 1
	_, err = r.ddb.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:           aws.String(r.tableName),
					Key:                 quoteKey(id),
					ConditionExpression: aws.String("#version = :expected AND NOT (#status IN (:accepted, :rejected))"),
					UpdateExpression:    aws.String("SET #version = :next, #items = :items, #total = :total, #updated_at = :now"),
					ExpressionAttributeNames: map[string]string{
						"#version":    "version",
						"#status":     "status",
						"#items":      "items",
						"#total":      "total_amount",
						"#updated_at": "updated_at",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(expectedVersion)},
						":accepted": &types.AttributeValueMemberS{Value: string(entity.QuoteStatusAccepted)},
						":rejected": &types.AttributeValueMemberS{Value: string(entity.QuoteStatusRejected)},
						":next":     &types.AttributeValueMemberN{Value: strconv.Itoa(newVersion)},
						":items":    itemsAV,
						":total":    &types.AttributeValueMemberN{Value: floatToString(revision.CalculateTotal(items))},
						":now":      &types.AttributeValueMemberS{Value: formatTime(edit.CreatedAt)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(r.tableName),
					Item:                editAV,
					ConditionExpression: aws.String("attribute_not_exists(#sk)"),
					ExpressionAttributeNames: map[string]string{
						"#sk": "sk",
					},
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return 0, r.commitConflict(ctx, id, expectedVersion)
		}
		return 0, fmt.Errorf("failed to commit quote version: %w", err)
	}

	r.logger.Info("Quote version committed",
		zap.String("quote_id", id),
		zap.Int("version", newVersion),
		zap.Int("items", len(items)),
	)
	return newVersion, nil
}

// commitConflict re-reads the quote to tell an answered quote from a lost race
func (r *QuoteStore) commitConflict(ctx context.Context, id string, expected int) error {
	q, _, err := r.LoadQuote(ctx, id)
	if err != nil {
		return err
	}
	if q.Status.IsTerminal() {
		return fmt.Errorf("%w: status %s", port.ErrQuoteNotEditable, q.Status)
	}
	return fmt.Errorf("%w: expected %d, store has %d", port.ErrStaleQuoteVersion, expected, q.Version)
}

// ListEdits queries the EDIT# rows of the quote in sort key order
func (r *QuoteStore) ListEdits(ctx context.Context, quoteID string) ([]*entity.QuoteEdit, error) {
	var (
		edits []*entity.QuoteEdit
		start map[string]types.AttributeValue
	)
	for {
		out, err := r.ddb.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("#pk = :pk AND begins_with(#sk, :prefix)"),
			ExpressionAttributeNames: map[string]string{
				"#pk": "pk",
				"#sk": "sk",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: quoteID},
				":prefix": &types.AttributeValueMemberS{Value: editPrefix},
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query quote edits: %w", err)
		}

		var recs []editRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
			return nil, fmt.Errorf("failed to decode quote edits: %w", err)
		}
		for _, rec := range recs {
			e, err := fromEditRecord(rec)
			if err != nil {
				return nil, err
			}
			edits = append(edits, e)
		}

		if len(out.LastEvaluatedKey) == 0 {
			return edits, nil
		}
		start = out.LastEvaluatedKey
	}
}

// UpdateStatus changes the status only if it still equals from
func (r *QuoteStore) UpdateStatus(ctx context.Context, id string, from, to entity.QuoteStatus, at time.Time) error {
	expr := "SET #status = :to, #updated_at = :at"
	names := map[string]string{
		"#status":     "status",
		"#updated_at": "updated_at",
	}
	switch to {
	case entity.QuoteStatusSent:
		expr += ", #sent_at = :at"
		names["#sent_at"] = "sent_at"
	case entity.QuoteStatusAccepted:
		expr += ", #accepted_at = :at"
		names["#accepted_at"] = "accepted_at"
	}

	_, err := r.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      quoteKey(id),
		ConditionExpression:      aws.String("#status = :from"),
		UpdateExpression:         aws.String(expr),
		ExpressionAttributeNames: names,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":from": &types.AttributeValueMemberS{Value: string(from)},
			":to":   &types.AttributeValueMemberS{Value: string(to)},
			":at":   &types.AttributeValueMemberS{Value: formatTime(at)},
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			if _, _, err := r.LoadQuote(ctx, id); err != nil {
				return err
			}
			return fmt.Errorf("%w: %s is no longer %s", port.ErrStatusConflict, id, from)
		}
		return fmt.Errorf("failed to update quote status: %w", err)
	}
	return nil
}

func sortItems(items []entity.QuoteItem) []entity.QuoteItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DisplayOrder < items[j].DisplayOrder
	})
	return items
}

// Verify interface compliance
var _ port.QuoteStore = (*QuoteStore)(nil)
