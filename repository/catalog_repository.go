package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/alvinkoh256/FoodBridge/models"
)

// ErrItemExists signals a lost create race on a catalog name.
var ErrItemExists = errors.New("catalog item already exists")

// CatalogRepository defines the interface for catalog item data access.
// Lookups are case-insensitive: the lower-cased name is the partition key.
type CatalogRepository interface {
	GetByName(ctx context.Context, name string) (*models.CatalogItem, error)
	Create(ctx context.Context, item *models.CatalogItem) error
	List(ctx context.Context) ([]models.CatalogItem, error)
}

// DynamoCatalogRepository implements CatalogRepository using DynamoDB
type DynamoCatalogRepository struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoCatalogRepository creates a new DynamoDB backed catalog repository
func NewDynamoCatalogRepository(client *dynamodb.Client, table string) *DynamoCatalogRepository {
	return &DynamoCatalogRepository{client: client, table: table}
}

type ddbCatalogItem struct {
	ItemNameLC       string  `dynamodbav:"item_name_lc"`
	ItemID           string  `dynamodbav:"item_id"`
	ItemName         string  `dynamodbav:"item_name"`
	StandardWeightKg float64 `dynamodbav:"standard_weight_kg"`
	CreatedAt        string  `dynamodbav:"created_at"`
}

func (d ddbCatalogItem) toModel() models.CatalogItem {
	item := models.CatalogItem{
		ItemID:           d.ItemID,
		ItemName:         d.ItemName,
		StandardWeightKg: d.StandardWeightKg,
	}
	if t, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
		item.CreatedAt = t
	}
	return item
}

func (r *DynamoCatalogRepository) GetByName(ctx context.Context, name string) (*models.CatalogItem, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"item_name_lc": strings.ToLower(strings.TrimSpace(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
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

	var di ddbCatalogItem
	if err := attributevalue.UnmarshalMap(out.Item, &di); err != nil {
		return nil, fmt.Errorf("unmarshal catalog item: %w", err)
	}
	item := di.toModel()
	return &item, nil
}

// Create inserts a new catalog entry. Returns ErrItemExists when another
// caller created the same name first; callers should re-read and use the
// winner's row.
func (r *DynamoCatalogRepository) Create(ctx context.Context, item *models.CatalogItem) error {
	di := ddbCatalogItem{
		ItemNameLC:       strings.ToLower(strings.TrimSpace(item.ItemName)),
		ItemID:           item.ItemID,
		ItemName:         item.ItemName,
		StandardWeightKg: item.StandardWeightKg,
		CreatedAt:        item.CreatedAt.Format(time.RFC3339),
	}

	av, err := attributevalue.MarshalMap(di)
	if err != nil {
		return fmt.Errorf("marshal catalog item: %w", err)
	}

	cond := "attribute_not_exists(item_name_lc)"
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.table,
		Item:                av,
		ConditionExpression: &cond,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrItemExists
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

// List returns every catalog entry ordered by name.
func (r *DynamoCatalogRepository) List(ctx context.Context) ([]models.CatalogItem, error) {
	items := make([]models.CatalogItem, 0)

	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         &r.table,
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb Scan failed: %w", err)
		}

		for _, raw := range out.Items {
			var di ddbCatalogItem
			if err := attributevalue.UnmarshalMap(raw, &di); err != nil {
				return nil, fmt.Errorf("unmarshal catalog item: %w", err)
			}
			items = append(items, di.toModel())
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		lastKey = out.LastEvaluatedKey
	}

	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].ItemName) < strings.ToLower(items[j].ItemName)
	})
	return items, nil
}
