package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/alvinkoh256/FoodBridge/models"
)

// ReservationRepository defines the interface for reservation records and
// their inventory snapshots. Reservations are keyed (hub_id, reservation_id);
// snapshot lines are keyed (reservation_id, item_id).
type ReservationRepository interface {
	Insert(ctx context.Context, res *models.Reservation) error
	Delete(ctx context.Context, hubID, reservationID string) error
	MarkCompleted(ctx context.Context, hubID, reservationID string) error
	FindOpenByHub(ctx context.Context, hubID string) (*models.Reservation, error)
	FindOpenByHubAndFoodbank(ctx context.Context, hubID, foodbankID string) (*models.Reservation, error)
	ListOpenByHub(ctx context.Context, hubID string) ([]models.Reservation, error)
	ListOpenByFoodbank(ctx context.Context, foodbankID string) ([]models.Reservation, error)

	InsertSnapshotLine(ctx context.Context, line *models.SnapshotLine) error
	ListSnapshotLines(ctx context.Context, reservationID string) ([]models.SnapshotLine, error)
	DeleteSnapshotLines(ctx context.Context, reservationID string) error
}

// DynamoReservationRepository implements ReservationRepository using two
// DynamoDB tables, one for reservations and one for snapshot lines.
type DynamoReservationRepository struct {
	client        *dynamodb.Client
	table         string
	snapshotTable string
}

// NewDynamoReservationRepository creates a new DynamoDB backed reservation repository
func NewDynamoReservationRepository(client *dynamodb.Client, table, snapshotTable string) *DynamoReservationRepository {
	return &DynamoReservationRepository{client: client, table: table, snapshotTable: snapshotTable}
}

type ddbReservation struct {
	HubID            string  `dynamodbav:"hub_id"`
	ReservationID    string  `dynamodbav:"reservation_id"`
	FoodbankID       string  `dynamodbav:"foodbank_id"`
	ReservedWeightKg float64 `dynamodbav:"reserved_weight_kg"`
	CreatedAt        string  `dynamodbav:"created_at"`
	Completed        bool    `dynamodbav:"completed"`
}

func (d ddbReservation) toModel() models.Reservation {
	res := models.Reservation{
		ReservationID:    d.ReservationID,
		HubID:            d.HubID,
		FoodbankID:       d.FoodbankID,
		ReservedWeightKg: d.ReservedWeightKg,
		Completed:        d.Completed,
	}
	if t, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
		res.CreatedAt = t
	}
	return res
}

type ddbSnapshotLine struct {
	ReservationID string  `dynamodbav:"reservation_id"`
	ItemID        string  `dynamodbav:"item_id"`
	ItemName      string  `dynamodbav:"item_name"`
	ItemWeightKg  float64 `dynamodbav:"item_weight_kg"`
	Quantity      int     `dynamodbav:"quantity"`
}

func reservationKey(hubID, reservationID string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"hub_id":         hubID,
		"reservation_id": reservationID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

func (r *DynamoReservationRepository) Insert(ctx context.Context, res *models.Reservation) error {
	dr := ddbReservation{
		HubID:            res.HubID,
		ReservationID:    res.ReservationID,
		FoodbankID:       res.FoodbankID,
		ReservedWeightKg: res.ReservedWeightKg,
		CreatedAt:        res.CreatedAt.Format(time.RFC3339),
		Completed:        res.Completed,
	}

	item, err := attributevalue.MarshalMap(dr)
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}

	cond := "attribute_not_exists(reservation_id)"
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.table,
		Item:                item,
		ConditionExpression: &cond,
	})
	if err != nil {
		return fmt.Errorf("insert reservation failed: %w", err)
	}
	return nil
}

// Delete removes a reservation row. A row already gone is not an error so
// compensation can re-run safely.
func (r *DynamoReservationRepository) Delete(ctx context.Context, hubID, reservationID string) error {
	key, err := reservationKey(hubID, reservationID)
	if err != nil {
		return err
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &r.table,
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("delete reservation failed: %w", err)
	}
	return nil
}

// MarkCompleted flags a reservation as collected. The row stays for history.
func (r *DynamoReservationRepository) MarkCompleted(ctx context.Context, hubID, reservationID string) error {
	key, err := reservationKey(hubID, reservationID)
	if err != nil {
		return err
	}

	expr := "SET completed = :true"
	cond := "attribute_exists(reservation_id)"
	trueAV, _ := attributevalue.Marshal(true)

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &r.table,
		Key:                       key,
		UpdateExpression:          &expr,
		ConditionExpression:       &cond,
		ExpressionAttributeValues: map[string]types.AttributeValue{":true": trueAV},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("mark reservation completed failed: %w", err)
	}
	return nil
}

// ListOpenByHub returns every open reservation on a hub. The invariant allows
// at most one, but repair tooling needs to see all of them.
func (r *DynamoReservationRepository) ListOpenByHub(ctx context.Context, hubID string) ([]models.Reservation, error) {
	keyCond := "hub_id = :h"
	filter := "completed = :false"
	hAV, _ := attributevalue.Marshal(hubID)
	falseAV, _ := attributevalue.Marshal(false)

	reservations := make([]models.Reservation, 0, 1)

	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &r.table,
			KeyConditionExpression: &keyCond,
			FilterExpression:       &filter,
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":h":     hAV,
				":false": falseAV,
			},
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb Query failed: %w", err)
		}
		for _, raw := range out.Items {
			var dr ddbReservation
			if err := attributevalue.UnmarshalMap(raw, &dr); err != nil {
				return nil, fmt.Errorf("unmarshal reservation: %w", err)
			}
			reservations = append(reservations, dr.toModel())
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}

	return reservations, nil
}

// FindOpenByHub returns the single open reservation for a hub, ErrNotFound
// when there is none. More than one open row means the one-reservation
// invariant has been violated and is surfaced, not repaired.
func (r *DynamoReservationRepository) FindOpenByHub(ctx context.Context, hubID string) (*models.Reservation, error) {
	open, err := r.ListOpenByHub(ctx, hubID)
	if err != nil {
		return nil, err
	}
	switch len(open) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &open[0], nil
	default:
		return nil, fmt.Errorf("hub %s has %d open reservations", hubID, len(open))
	}
}

func (r *DynamoReservationRepository) FindOpenByHubAndFoodbank(ctx context.Context, hubID, foodbankID string) (*models.Reservation, error) {
	open, err := r.ListOpenByHub(ctx, hubID)
	if err != nil {
		return nil, err
	}
	for i := range open {
		if open[i].FoodbankID == foodbankID {
			return &open[i], nil
		}
	}
	return nil, ErrNotFound
}

// ListOpenByFoodbank returns a foodbank's open reservations, newest first.
func (r *DynamoReservationRepository) ListOpenByFoodbank(ctx context.Context, foodbankID string) ([]models.Reservation, error) {
	filter := "foodbank_id = :f AND completed = :false"
	fAV, _ := attributevalue.Marshal(foodbankID)
	falseAV, _ := attributevalue.Marshal(false)

	reservations := make([]models.Reservation, 0)

	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        &r.table,
			FilterExpression: &filter,
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":f":     fAV,
				":false": falseAV,
			},
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb Scan failed: %w", err)
		}
		for _, raw := range out.Items {
			var dr ddbReservation
			if err := attributevalue.UnmarshalMap(raw, &dr); err != nil {
				return nil, fmt.Errorf("unmarshal reservation: %w", err)
			}
			reservations = append(reservations, dr.toModel())
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}

	sort.Slice(reservations, func(i, j int) bool {
		return reservations[i].CreatedAt.After(reservations[j].CreatedAt)
	})
	return reservations, nil
}

func (r *DynamoReservationRepository) InsertSnapshotLine(ctx context.Context, line *models.SnapshotLine) error {
	dl := ddbSnapshotLine{
		ReservationID: line.ReservationID,
		ItemID:        line.ItemID,
		ItemName:      line.ItemName,
		ItemWeightKg:  line.ItemWeightKg,
		Quantity:      line.Quantity,
	}

	item, err := attributevalue.MarshalMap(dl)
	if err != nil {
		return fmt.Errorf("marshal snapshot line: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.snapshotTable,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("insert snapshot line failed: %w", err)
	}
	return nil
}

func (r *DynamoReservationRepository) ListSnapshotLines(ctx context.Context, reservationID string) ([]models.SnapshotLine, error) {
	keyCond := "reservation_id = :r"
	rAV, _ := attributevalue.Marshal(reservationID)

	lines := make([]models.SnapshotLine, 0)

	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 &r.snapshotTable,
			KeyConditionExpression:    &keyCond,
			ExpressionAttributeValues: map[string]types.AttributeValue{":r": rAV},
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb Query failed: %w", err)
		}
		for _, raw := range out.Items {
			var dl ddbSnapshotLine
			if err := attributevalue.UnmarshalMap(raw, &dl); err != nil {
				return nil, fmt.Errorf("unmarshal snapshot line: %w", err)
			}
			lines = append(lines, models.SnapshotLine{
				ReservationID: dl.ReservationID,
				ItemID:        dl.ItemID,
				ItemName:      dl.ItemName,
				ItemWeightKg:  dl.ItemWeightKg,
				Quantity:      dl.Quantity,
			})
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}

	return lines, nil
}

// DeleteSnapshotLines removes every snapshot line of a reservation. Safe to
// call on a partial or already-deleted snapshot.
func (r *DynamoReservationRepository) DeleteSnapshotLines(ctx context.Context, reservationID string) error {
	lines, err := r.ListSnapshotLines(ctx, reservationID)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	requests := make([]types.WriteRequest, 0, len(lines))
	for _, line := range lines {
		key, err := attributevalue.MarshalMap(map[string]string{
			"reservation_id": line.ReservationID,
			"item_id":        line.ItemID,
		})
		if err != nil {
			return fmt.Errorf("marshal key: %w", err)
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
		batch := map[string][]types.WriteRequest{r.snapshotTable: requests[i:end]}
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: batch,
		})
		if err != nil {
			return fmt.Errorf("batch delete failed: %w", err)
		}
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
