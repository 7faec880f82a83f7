package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	awspkg "github.com/alvinkoh256/FoodBridge/pkg/aws"
	"github.com/alvinkoh256/FoodBridge/services"
)

// Config holds all configuration for the hub-service.
type Config struct {
	Port             string  // Service port (default: 8086)
	Env              string  // "development" or "production"
	DDBTableHubs     string  // DynamoDB table for hubs
	DDBTableCatalog  string  // DynamoDB table for the item catalog
	DDBTableInv      string  // DynamoDB table for hub inventory lines
	DDBTableRes      string  // DynamoDB table for reservations
	DDBTableSnaps    string  // DynamoDB table for reservation snapshots
	HubEventsTopic   string  // SNS topic ARN for hub events
	AccountAPIURL    string  // Base URL of the account info API
	ReadyThresholdKg float64 // Weight at which a hub becomes ready to collect
}

// LoadConfig loads environment variables into Config struct.
func LoadConfig() (*Config, error) {
	// .env is optional, real deployments inject the environment directly
	_ = godotenv.Load()

	cfg := &Config{
		Port:            os.Getenv("PORT"),
		Env:             os.Getenv("APP_ENV"),
		DDBTableHubs:    os.Getenv("DDB_TABLE_HUBS"),
		DDBTableCatalog: os.Getenv("DDB_TABLE_CATALOG"),
		DDBTableInv:     os.Getenv("DDB_TABLE_INVENTORY"),
		DDBTableRes:     os.Getenv("DDB_TABLE_RESERVATIONS"),
		DDBTableSnaps:   os.Getenv("DDB_TABLE_SNAPSHOTS"),
		HubEventsTopic:  os.Getenv("HUB_EVENTS_TOPIC_ARN"),
		AccountAPIURL:   os.Getenv("ACCOUNT_API_URL"),
	}

	if cfg.Port == "" {
		cfg.Port = "8086"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.DDBTableHubs == "" {
		cfg.DDBTableHubs = "Hubs"
	}
	if cfg.DDBTableCatalog == "" {
		cfg.DDBTableCatalog = "HubCatalog"
	}
	if cfg.DDBTableInv == "" {
		cfg.DDBTableInv = "HubInventory"
	}
	if cfg.DDBTableRes == "" {
		cfg.DDBTableRes = "HubReservations"
	}
	if cfg.DDBTableSnaps == "" {
		cfg.DDBTableSnaps = "HubReservationSnapshots"
	}

	cfg.ReadyThresholdKg = services.DefaultReadyThresholdKg
	if raw := os.Getenv("READY_THRESHOLD_KG"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid READY_THRESHOLD_KG %q", raw)
		}
		cfg.ReadyThresholdKg = v
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := awspkg.LoadAWSConfig(context.Background()); err == nil {
			sm := awspkg.NewSecretsClient(awsCfg)
			cfg.HubEventsTopic = sm.GetSecretOr(context.Background(), awspkg.SecretHubEventsTopicARN, cfg.HubEventsTopic)
			cfg.AccountAPIURL = sm.GetSecretOr(context.Background(), awspkg.SecretAccountAPIURL, cfg.AccountAPIURL)
		}
	}

	if cfg.AccountAPIURL == "" {
		return nil, fmt.Errorf("ACCOUNT_API_URL is required")
	}

	return cfg, nil
}
