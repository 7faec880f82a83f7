// Operator tool for hubs left reserved by a failed reservation rollback.
// The reserve path never clears the reserved flag on compensation, so a hub
// can end up flagged with no open reservation behind it. This tool removes
// any leftover reservation rows and snapshots, optionally wipes the
// inventory ledger, and frees the hub.
//
// Usage:
//
//	release-stuck-hub -hub <hubID> [-clear-inventory] [-threshold 50]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	awspkg "github.com/alvinkoh256/FoodBridge/pkg/aws"
	"github.com/alvinkoh256/FoodBridge/repository"
)

func main() {
	var hubID string
	var clearInventory bool
	var threshold float64
	var hubTable, invTable, resTable, snapTable string
	flag.StringVar(&hubID, "hub", "", "hub ID to release")
	flag.BoolVar(&clearInventory, "clear-inventory", false, "also wipe the hub's inventory ledger")
	flag.Float64Var(&threshold, "threshold", 50, "ready-to-collect weight threshold in kg")
	flag.StringVar(&hubTable, "hubs-table", envOr("DDB_TABLE_HUBS", "Hubs"), "DynamoDB hubs table")
	flag.StringVar(&invTable, "inventory-table", envOr("DDB_TABLE_INVENTORY", "HubInventory"), "DynamoDB inventory table")
	flag.StringVar(&resTable, "reservations-table", envOr("DDB_TABLE_RESERVATIONS", "HubReservations"), "DynamoDB reservations table")
	flag.StringVar(&snapTable, "snapshots-table", envOr("DDB_TABLE_SNAPSHOTS", "HubReservationSnapshots"), "DynamoDB snapshots table")
	flag.Parse()

	if hubID == "" {
		log.Fatal("-hub is required")
	}

	ctx := context.Background()
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	ddbClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if ep := os.Getenv("AWS_DDB_ENDPOINT"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
	})

	hubRepo := repository.NewDynamoHubRepository(ddbClient, hubTable)
	invRepo := repository.NewDynamoInventoryRepository(ddbClient, invTable)
	resRepo := repository.NewDynamoReservationRepository(ddbClient, resTable, snapTable)

	if err := release(ctx, hubRepo, invRepo, resRepo, hubID, clearInventory, threshold); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("hub %s released\n", hubID)
}

// release removes every open reservation on the hub with its snapshot,
// recomputes or wipes the inventory, and clears the reserved flag. A corrupted
// hub can carry more than one open reservation, so all of them are cleaned.
func release(ctx context.Context, hubRepo repository.HubRepository, invRepo repository.InventoryRepository, resRepo repository.ReservationRepository, hubID string, clearInventory bool, threshold float64) error {
	hub, err := hubRepo.Get(ctx, hubID)
	if err != nil {
		return fmt.Errorf("load hub %s: %w", hubID, err)
	}
	if !hub.Reserved {
		log.Printf("hub %s is not flagged reserved, continuing anyway", hubID)
	}

	open, err := resRepo.ListOpenByHub(ctx, hubID)
	if err != nil {
		return fmt.Errorf("list open reservations: %w", err)
	}
	if len(open) == 0 {
		log.Printf("no open reservation for hub %s", hubID)
	}
	for _, res := range open {
		log.Printf("removing open reservation %s (foodbank %s)", res.ReservationID, res.FoodbankID)
		if err := resRepo.DeleteSnapshotLines(ctx, res.ReservationID); err != nil {
			return fmt.Errorf("delete snapshot for %s: %w", res.ReservationID, err)
		}
		if err := resRepo.Delete(ctx, hubID, res.ReservationID); err != nil {
			return fmt.Errorf("delete reservation %s: %w", res.ReservationID, err)
		}
	}

	if clearInventory {
		if err := invRepo.ClearAll(ctx, hubID); err != nil {
			return fmt.Errorf("clear inventory: %w", err)
		}
		if err := hubRepo.ApplyWeightUpdate(ctx, hubID, 0, false); err != nil {
			return fmt.Errorf("reset weight: %w", err)
		}
		log.Printf("inventory cleared for hub %s", hubID)
	} else {
		lines, err := invRepo.ListLines(ctx, hubID)
		if err != nil {
			return fmt.Errorf("list inventory: %w", err)
		}
		var total float64
		for _, line := range lines {
			total += float64(line.Quantity) * line.ItemWeightKg
		}
		if err := hubRepo.ApplyWeightUpdate(ctx, hubID, total, total >= threshold); err != nil {
			return fmt.Errorf("recompute weight: %w", err)
		}
		log.Printf("hub %s weight recomputed to %.2f kg", hubID, total)
	}

	if err := hubRepo.SetReserved(ctx, hubID, false); err != nil {
		return fmt.Errorf("release hub: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
