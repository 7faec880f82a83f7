package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/alvinkoh256/FoodBridge/logger"
	"github.com/alvinkoh256/FoodBridge/models"
)

var (
	// ErrAccountNotFound means the Account Info API has no such user.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNotFoodbank means the user exists but is not a foodbank.
	ErrNotFoodbank = errors.New("account is not a foodbank")
)

// AccountAPI validates reservation actors against the external identity
// service.
type AccountAPI interface {
	GetFoodbank(ctx context.Context, foodbankID string) (*models.FoodbankAccount, error)
}

// AccountClient communicates with the Account Info API via HTTP.
type AccountClient struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
}

// NewAccountClient creates a new AccountClient
func NewAccountClient(baseURL string) *AccountClient {
	return &AccountClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxAttempts: 3,
	}
}

// GetFoodbank fetches a user record and requires the foodbank role. Server
// errors and transport failures are retried a bounded number of times with
// linear backoff; exhausting them surfaces as an upstream failure, never a
// hang.
func (c *AccountClient) GetFoodbank(ctx context.Context, foodbankID string) (*models.FoodbankAccount, error) {
	url := fmt.Sprintf("%s/user/%s", c.baseURL, foodbankID)

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		account, retryable, err := c.fetchOnce(ctx, url)
		if err == nil {
			if !isFoodbankRole(account.UserRole) {
				return nil, ErrNotFoodbank
			}
			return account, nil
		}
		if !retryable {
			return nil, err
		}

		lastErr = err
		logger.Log.Warn("account lookup attempt failed",
			zap.String("foodbank_id", foodbankID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("account service unavailable after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *AccountClient) fetchOnce(ctx context.Context, url string) (*models.FoodbankAccount, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("account service request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrAccountNotFound
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("account service returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("account service returned %d", resp.StatusCode)
	}

	// The API answers with either a single user object or a one-element list.
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, false, fmt.Errorf("decode account response: %w", err)
	}

	var account models.FoodbankAccount
	if err := json.Unmarshal(raw, &account); err != nil {
		var list []models.FoodbankAccount
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, false, fmt.Errorf("decode account response: %w", err)
		}
		if len(list) == 0 {
			return nil, false, ErrAccountNotFound
		}
		account = list[0]
	}

	return &account, false, nil
}

// The legacy API encodes the foodbank role as "F".
func isFoodbankRole(role string) bool {
	return role == "foodbank" || role == "F"
}
