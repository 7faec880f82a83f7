package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/alvinkoh256/FoodBridge/models"
)

// InventoryRepository defines the interface for hub inventory data access.
// Lines are keyed (hub_id, item_id); repeated drop-offs of the same item
// merge into one line.
type InventoryRepository interface {
	AddQuantity(ctx context.Context, hubID string, item *models.CatalogItem, quantity int) error
	SubtractQuantity(ctx context.Context, hubID, itemID string, quantity int) (int, error)
	ListLines(ctx context.Context, hubID string) ([]models.InventoryLine, error)
	ClearAll(ctx context.Context, hubID string) error
}

// DynamoInventoryRepository implements InventoryRepository using DynamoDB
type DynamoInventoryRepository struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoInventoryRepository creates a new DynamoDB backed inventory repository
func NewDynamoInventoryRepository(client *dynamodb.Client, table string) *DynamoInventoryRepository {
	return &DynamoInventoryRepository{client: client, table: table}
}

type ddbInventoryLine struct {
	HubID        string  `dynamodbav:"hub_id"`
	ItemID       string  `dynamodbav:"item_id"`
	ItemName     string  `dynamodbav:"item_name"`
	ItemWeightKg float64 `dynamodbav:"item_weight_kg"`
	Quantity     int     `dynamodbav:"quantity"`
}

func lineKey(hubID, itemID string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"hub_id":  hubID,
		"item_id": itemID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

// AddQuantity upserts a line in one write: a fresh line starts from zero and
// snapshots the item's name and unit weight, an existing line keeps its
// snapshot and just grows.
func (r *DynamoInventoryRepository) AddQuantity(ctx context.Context, hubID string, item *models.CatalogItem, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	key, err := lineKey(hubID, item.ItemID)
	if err != nil {
		return err
	}

	expr := "SET quantity = if_not_exists(quantity, :zero) + :qty, " +
		"item_name = if_not_exists(item_name, :name), " +
		"item_weight_kg = if_not_exists(item_weight_kg, :w)"

	zeroAV, _ := attributevalue.Marshal(0)
	qtyAV, _ := attributevalue.Marshal(quantity)
	nameAV, _ := attributevalue.Marshal(item.ItemName)
	wAV, _ := attributevalue.Marshal(item.StandardWeightKg)

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &r.table,
		Key:              key,
		UpdateExpression: &expr,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": zeroAV,
			":qty":  qtyAV,
			":name": nameAV,
			":w":    wAV,
		},
	})
	if err != nil {
		return fmt.Errorf("add quantity failed: %w", err)
	}
	return nil
}

// SubtractQuantity removes up to `quantity` from a line and reports how much
// actually came off. When the line holds no more than the requested amount it
// is deleted whole and the stored quantity is returned (clamp at zero, never
// negative). A missing line subtracts nothing.
func (r *DynamoInventoryRepository) SubtractQuantity(ctx context.Context, hubID, itemID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	key, err := lineKey(hubID, itemID)
	if err != nil {
		return 0, err
	}

	qtyAV, _ := attributevalue.Marshal(quantity)

	// A concurrent drop-off can move the quantity between the two conditional
	// writes, so alternate decrement and delete until one of them lands.
	for attempt := 0; attempt < 3; attempt++ {
		decExpr := "SET quantity = quantity - :qty"
		decCond := "quantity > :qty"
		_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 &r.table,
			Key:                       key,
			UpdateExpression:          &decExpr,
			ConditionExpression:       &decCond,
			ExpressionAttributeValues: map[string]types.AttributeValue{":qty": qtyAV},
		})
		if err == nil {
			return quantity, nil
		}
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return 0, fmt.Errorf("subtract quantity failed: %w", err)
		}

		// A missing line must delete cleanly too, otherwise the condition
		// failure would be indistinguishable from a lost race.
		delCond := "attribute_not_exists(hub_id) OR quantity <= :qty"
		out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                 &r.table,
			Key:                       key,
			ConditionExpression:       &delCond,
			ExpressionAttributeValues: map[string]types.AttributeValue{":qty": qtyAV},
			ReturnValues:              types.ReturnValueAllOld,
		})
		if err == nil {
			if len(out.Attributes) == 0 {
				return 0, nil
			}
			var old ddbInventoryLine
			if err := attributevalue.UnmarshalMap(out.Attributes, &old); err != nil {
				return 0, fmt.Errorf("unmarshal removed line: %w", err)
			}
			return old.Quantity, nil
		}
		if !errors.As(err, &ccf) {
			return 0, fmt.Errorf("delete line failed: %w", err)
		}
	}

	return 0, fmt.Errorf("subtract quantity for hub=%s item=%s did not settle", hubID, itemID)
}

// ListLines returns every inventory line for a hub. No lock is held across
// pages; concurrent drop-offs may land between them.
func (r *DynamoInventoryRepository) ListLines(ctx context.Context, hubID string) ([]models.InventoryLine, error) {
	lines := make([]models.InventoryLine, 0)

	keyCond := "hub_id = :h"
	hAV, _ := attributevalue.Marshal(hubID)

	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 &r.table,
			KeyConditionExpression:    &keyCond,
			ExpressionAttributeValues: map[string]types.AttributeValue{":h": hAV},
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb Query failed: %w", err)
		}

		for _, raw := range out.Items {
			var dl ddbInventoryLine
			if err := attributevalue.UnmarshalMap(raw, &dl); err != nil {
				return nil, fmt.Errorf("unmarshal inventory line: %w", err)
			}
			lines = append(lines, models.InventoryLine{
				HubID:        dl.HubID,
				ItemID:       dl.ItemID,
				ItemName:     dl.ItemName,
				ItemWeightKg: dl.ItemWeightKg,
				Quantity:     dl.Quantity,
			})
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}

	return lines, nil
}

// ClearAll deletes every inventory line for a hub in batches of 25, the
// BatchWriteItem limit.
func (r *DynamoInventoryRepository) ClearAll(ctx context.Context, hubID string) error {
	lines, err := r.ListLines(ctx, hubID)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, len(lines))
	for _, line := range lines {
		key, err := lineKey(line.HubID, line.ItemID)
		if err != nil {
			return err
		}
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: key},
		})
	}

	for i := 0; i < len(requests); i += 25 {
		end := i + 25
		if end > len(requests) {
			end = len(requests)
		}
		batch := map[string][]types.WriteRequest{r.table: requests[i:end]}
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: batch,
		})
		if err != nil {
			return fmt.Errorf("batch delete failed: %w", err)
		}
		// Push unprocessed deletes back through once rather than dropping them.
		if len(out.UnprocessedItems) > 0 {
			if _, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: out.UnprocessedItems,
			}); err != nil {
				return fmt.Errorf("batch delete retry failed: %w", err)
			}
		}
	}

	return nil
}
