package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alvinkoh256/FoodBridge/logger"
	"github.com/alvinkoh256/FoodBridge/models"
	awspkg "github.com/alvinkoh256/FoodBridge/pkg/aws"
)

// publishTimeout bounds every event-bus call so no operation hangs on SNS.
const publishTimeout = 5 * time.Second

// EventPublisher is the boundary over which reservation and collection
// state changes leave the service. Delivery is best-effort, at-most-once.
type EventPublisher interface {
	Publish(ctx context.Context, event *models.HubEvent) error
}

// SNSEventPublisher publishes hub events to a single SNS topic.
type SNSEventPublisher struct {
	sns      awspkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(sns awspkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{sns: sns, topicArn: topicArn}
}

func (p *SNSEventPublisher) Publish(ctx context.Context, event *models.HubEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Event, err)
	}

	if err := p.sns.Publish(ctx, p.topicArn, body); err != nil {
		return fmt.Errorf("publish event %s: %w", event.Event, err)
	}
	return nil
}

// publishBestEffort fires an event without tying its fate to the operation
// that produced it: failures are logged, counted, and swallowed, and a
// detached context keeps a disconnecting caller from cancelling the publish.
func publishBestEffort(publisher EventPublisher, metrics *awspkg.MetricsClient, event *models.HubEvent) {
	if publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := publisher.Publish(ctx, event); err != nil {
		logger.Log.Warn("event publish failed",
			zap.String("event", event.Event),
			zap.String("hub_id", event.HubID),
			zap.Error(err),
		)
		recordEventCount(metrics, awspkg.MetricEventPublishErr)
		return
	}
	recordEventCount(metrics, awspkg.MetricEventPublished)
}

func recordEventCount(metrics *awspkg.MetricsClient, metric string) {
	if metrics == nil || !metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		_ = metrics.RecordCount(ctx, metric, map[string]string{"Service": "hub-service"})
	}()
}
