package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/alvinkoh256/FoodBridge/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyReserved = errors.New("hub already reserved")
)

// HubRepository defines the interface for hub data access
type HubRepository interface {
	Get(ctx context.Context, hubID string) (*models.Hub, error)
	Ensure(ctx context.Context, hubID, name, address string) (*models.Hub, error)
	ApplyWeightUpdate(ctx context.Context, hubID string, totalWeightKg float64, readyToCollect bool) error
	SetReserved(ctx context.Context, hubID string, reserved bool) error
	ReserveIfFree(ctx context.Context, hubID string) error
	ListAll(ctx context.Context) ([]models.Hub, error)
	ListReady(ctx context.Context) ([]models.Hub, error)
	ListAvailable(ctx context.Context) ([]models.Hub, error)
}

// DynamoHubRepository implements HubRepository using DynamoDB
type DynamoHubRepository struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoHubRepository creates a new DynamoDB backed hub repository
func NewDynamoHubRepository(client *dynamodb.Client, table string) *DynamoHubRepository {
	return &DynamoHubRepository{client: client, table: table}
}

type ddbHub struct {
	HubID          string  `dynamodbav:"hub_id"`
	HubName        string  `dynamodbav:"hub_name"`
	HubAddress     string  `dynamodbav:"hub_address"`
	Reserved       bool    `dynamodbav:"reserved"`
	ReadyToCollect bool    `dynamodbav:"ready_to_collect"`
	TotalWeightKg  float64 `dynamodbav:"total_weight_kg"`
	UpdatedAt      string  `dynamodbav:"updated_at"`
}

func (d ddbHub) toModel() models.Hub {
	hub := models.Hub{
		HubID:          d.HubID,
		HubName:        d.HubName,
		HubAddress:     d.HubAddress,
		Reserved:       d.Reserved,
		ReadyToCollect: d.ReadyToCollect,
		TotalWeightKg:  d.TotalWeightKg,
	}
	if t, err := time.Parse(time.RFC3339, d.UpdatedAt); err == nil {
		hub.UpdatedAt = t
	}
	return hub
}

func hubKey(hubID string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"hub_id": hubID})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

func (r *DynamoHubRepository) Get(ctx context.Context, hubID string) (*models.Hub, error) {
	key, err := hubKey(hubID)
	if err != nil {
		return nil, err
	}

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.table,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var dh ddbHub
	if err := attributevalue.UnmarshalMap(out.Item, &dh); err != nil {
		return nil, fmt.Errorf("unmarshal hub: %w", err)
	}
	hub := dh.toModel()
	return &hub, nil
}

// Ensure creates the hub on first sight, or refreshes name/address when the
// caller supplies new values. Reservation state and weight survive re-ensure.
func (r *DynamoHubRepository) Ensure(ctx context.Context, hubID, name, address string) (*models.Hub, error) {
	existing, err := r.Get(ctx, hubID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()

	if existing == nil {
		dh := ddbHub{
			HubID:          hubID,
			HubName:        name,
			HubAddress:     address,
			Reserved:       false,
			ReadyToCollect: false,
			TotalWeightKg:  0,
			UpdatedAt:      now.Format(time.RFC3339),
		}
		item, err := attributevalue.MarshalMap(dh)
		if err != nil {
			return nil, fmt.Errorf("marshal hub: %w", err)
		}
		cond := "attribute_not_exists(hub_id)"
		_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           &r.table,
			Item:                item,
			ConditionExpression: &cond,
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				// Lost a create race; the hub exists now.
				return r.Ensure(ctx, hubID, name, address)
			}
			return nil, fmt.Errorf("dynamodb PutItem failed: %w", err)
		}
		hub := dh.toModel()
		return &hub, nil
	}

	if (name != "" && name != existing.HubName) || (address != "" && address != existing.HubAddress) {
		if name == "" {
			name = existing.HubName
		}
		if address == "" {
			address = existing.HubAddress
		}
		key, err := hubKey(hubID)
		if err != nil {
			return nil, err
		}
		expr := "SET hub_name = :name, hub_address = :addr, updated_at = :now"
		vals, err := attributevalue.MarshalMap(map[string]string{
			":name": name,
			":addr": address,
			":now":  now.Format(time.RFC3339),
		})
		if err != nil {
			return nil, fmt.Errorf("marshal update values: %w", err)
		}
		_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 &r.table,
			Key:                       key,
			UpdateExpression:          &expr,
			ExpressionAttributeValues: vals,
		})
		if err != nil {
			return nil, fmt.Errorf("update hub failed: %w", err)
		}
		existing.HubName = name
		existing.HubAddress = address
		existing.UpdatedAt = now
	}

	return existing, nil
}

// ApplyWeightUpdate persists a recomputed total weight and readiness flag.
func (r *DynamoHubRepository) ApplyWeightUpdate(ctx context.Context, hubID string, totalWeightKg float64, readyToCollect bool) error {
	key, err := hubKey(hubID)
	if err != nil {
		return err
	}

	expr := "SET total_weight_kg = :w, ready_to_collect = :ready, updated_at = :now"
	wAV, _ := attributevalue.Marshal(totalWeightKg)
	readyAV, _ := attributevalue.Marshal(readyToCollect)
	nowAV, _ := attributevalue.Marshal(time.Now().UTC().Format(time.RFC3339))
	cond := "attribute_exists(hub_id)"

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &r.table,
		Key:                 key,
		UpdateExpression:    &expr,
		ConditionExpression: &cond,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":w":     wAV,
			":ready": readyAV,
			":now":   nowAV,
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("apply weight update failed: %w", err)
	}
	return nil
}

// SetReserved flips the reserved flag unconditionally. Reserve paths must use
// ReserveIfFree instead; this is for unreserve and collection resets.
func (r *DynamoHubRepository) SetReserved(ctx context.Context, hubID string, reserved bool) error {
	key, err := hubKey(hubID)
	if err != nil {
		return err
	}

	expr := "SET reserved = :r, updated_at = :now"
	rAV, _ := attributevalue.Marshal(reserved)
	nowAV, _ := attributevalue.Marshal(time.Now().UTC().Format(time.RFC3339))
	cond := "attribute_exists(hub_id)"

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &r.table,
		Key:                 key,
		UpdateExpression:    &expr,
		ConditionExpression: &cond,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r":   rAV,
			":now": nowAV,
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("set reserved failed: %w", err)
	}
	return nil
}

// ReserveIfFree atomically sets reserved=true only when it is currently
// false. Two concurrent reservations on one hub cannot both succeed: the
// loser gets ErrAlreadyReserved from the conditional check.
func (r *DynamoHubRepository) ReserveIfFree(ctx context.Context, hubID string) error {
	key, err := hubKey(hubID)
	if err != nil {
		return err
	}

	expr := "SET reserved = :true, updated_at = :now"
	cond := "attribute_exists(hub_id) AND reserved = :false"
	trueAV, _ := attributevalue.Marshal(true)
	falseAV, _ := attributevalue.Marshal(false)
	nowAV, _ := attributevalue.Marshal(time.Now().UTC().Format(time.RFC3339))

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &r.table,
		Key:                 key,
		UpdateExpression:    &expr,
		ConditionExpression: &cond,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  trueAV,
			":false": falseAV,
			":now":   nowAV,
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyReserved
		}
		return fmt.Errorf("reserve hub failed: %w", err)
	}
	return nil
}

func (r *DynamoHubRepository) scanHubs(ctx context.Context, filter *string, vals map[string]types.AttributeValue) ([]models.Hub, error) {
	hubs := make([]models.Hub, 0)

	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 &r.table,
			FilterExpression:          filter,
			ExpressionAttributeValues: vals,
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb Scan failed: %w", err)
		}

		for _, item := range out.Items {
			var dh ddbHub
			if err := attributevalue.UnmarshalMap(item, &dh); err != nil {
				return nil, fmt.Errorf("unmarshal hub: %w", err)
			}
			hubs = append(hubs, dh.toModel())
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}

	return hubs, nil
}

func (r *DynamoHubRepository) ListAll(ctx context.Context) ([]models.Hub, error) {
	return r.scanHubs(ctx, nil, nil)
}

// ListReady returns hubs at or above the collection threshold that no
// foodbank has reserved yet.
func (r *DynamoHubRepository) ListReady(ctx context.Context) ([]models.Hub, error) {
	filter := "ready_to_collect = :true AND reserved = :false"
	trueAV, _ := attributevalue.Marshal(true)
	falseAV, _ := attributevalue.Marshal(false)
	return r.scanHubs(ctx, &filter, map[string]types.AttributeValue{
		":true":  trueAV,
		":false": falseAV,
	})
}

// ListAvailable returns every unreserved hub regardless of readiness.
func (r *DynamoHubRepository) ListAvailable(ctx context.Context) ([]models.Hub, error) {
	filter := "reserved = :false"
	falseAV, _ := attributevalue.Marshal(false)
	return r.scanHubs(ctx, &filter, map[string]types.AttributeValue{
		":false": falseAV,
	})
}
