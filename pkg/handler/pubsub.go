package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
)

// DefaultAckDeadline is used for new subscriptions when no deadline is given
const DefaultAckDeadline = 10 * time.Second

// PubSub publishes and pulls messages. Delivery semantics are those of the Pub/Sub service.
type PubSub struct {
	backend   interfaces.PubSub
	projectID types.GoogleProjectID
}

func NewPubSub(backend interfaces.PubSub, projectID types.GoogleProjectID) *PubSub {
	return &PubSub{backend: backend, projectID: projectID}
}

func (x *PubSub) ProjectID() types.GoogleProjectID { return x.projectID }

// CreateTopic creates the topic. An existing topic is not an error.
func (x *PubSub) CreateTopic(ctx context.Context, topic types.PubSubTopicID) error {
	const op = "CreateTopic"
	if topic == "" {
		return invalidInput(types.ServicePubSub, op, "topic is required")
	}

	if err := x.backend.CreateTopic(ctx, topic); err != nil {
		if errors.Is(err, types.ErrAlreadyExists) {
			utils.CtxLogger(ctx).Debug("topic already exists", "topic", topic)
			return nil
		}
		return opError(types.ServicePubSub, op, err)
	}
	return nil
}

// CreatePushSubscription binds a subscription that pushes messages of topic to endpoint
func (x *PubSub) CreatePushSubscription(ctx context.Context, topic types.PubSubTopicID, sub types.PubSubSubscriptionID, endpoint string, ackDeadline time.Duration) error {
	const op = "CreatePushSubscription"
	if endpoint == "" {
		return invalidInput(types.ServicePubSub, op, "push endpoint is required", goerr.V("subscription", sub))
	}
	return x.createSubscription(ctx, op, sub, model.SubscriptionConfig{
		Topic:        topic,
		PushEndpoint: endpoint,
		AckDeadline:  ackDeadline,
	})
}

// CreatePullSubscription binds a subscription to be read by Pull
func (x *PubSub) CreatePullSubscription(ctx context.Context, topic types.PubSubTopicID, sub types.PubSubSubscriptionID, ackDeadline time.Duration) error {
	return x.createSubscription(ctx, "CreatePullSubscription", sub, model.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: ackDeadline,
	})
}

func (x *PubSub) createSubscription(ctx context.Context, op string, sub types.PubSubSubscriptionID, cfg model.SubscriptionConfig) error {
	if cfg.Topic == "" || sub == "" {
		return invalidInput(types.ServicePubSub, op, "topic and subscription are required", goerr.V("topic", cfg.Topic), goerr.V("subscription", sub))
	}
	if cfg.AckDeadline <= 0 {
		cfg.AckDeadline = DefaultAckDeadline
	}

	if err := x.backend.CreateSubscription(ctx, sub, cfg); err != nil {
		if errors.Is(err, types.ErrAlreadyExists) {
			utils.CtxLogger(ctx).Debug("subscription already exists", "subscription", sub)
			return nil
		}
		return opError(types.ServicePubSub, op, err)
	}
	return nil
}

// Publish sends data to topic and returns the server assigned message ID
func (x *PubSub) Publish(ctx context.Context, topic types.PubSubTopicID, data []byte, attrs map[string]string) (types.PubSubMessageID, error) {
	const op = "Publish"
	if topic == "" {
		return "", invalidInput(types.ServicePubSub, op, "topic is required")
	}

	id, err := x.backend.Publish(ctx, topic, data, attrs)
	if err != nil {
		return "", opError(types.ServicePubSub, op, err)
	}

	utils.CtxLogger(ctx).Debug("message published", "topic", topic, "messageID", id)
	return id, nil
}

// PublishJSON marshals v and publishes it
func (x *PubSub) PublishJSON(ctx context.Context, topic types.PubSubTopicID, v any, attrs map[string]string) (types.PubSubMessageID, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", opError(types.ServicePubSub, "PublishJSON", goerr.Wrap(err, "failed to marshal message", goerr.V("topic", topic)))
	}
	return x.Publish(ctx, topic, data, attrs)
}

// Pull returns at most maxMessages messages without acknowledging them
// MaxPullMessages is the largest batch one pull request can return. Larger requests are capped.
const MaxPullMessages = 1000

func (x *PubSub) Pull(ctx context.Context, sub types.PubSubSubscriptionID, maxMessages int) ([]*model.ReceivedMessage, error) {
	const op = "Pull"
	if sub == "" {
		return nil, invalidInput(types.ServicePubSub, op, "subscription is required")
	}
	if maxMessages <= 0 {
		return nil, invalidInput(types.ServicePubSub, op, "maxMessages must be positive", goerr.V("maxMessages", maxMessages))
	}

	if maxMessages > MaxPullMessages {
		maxMessages = MaxPullMessages
	}

	msgs, err := x.backend.Pull(ctx, sub, maxMessages)
	if err != nil {
		return nil, opError(types.ServicePubSub, op, err)
	}
	return msgs, nil
}

func (x *PubSub) Ack(ctx context.Context, sub types.PubSubSubscriptionID, ackIDs []string) error {
	const op = "Ack"
	if sub == "" {
		return invalidInput(types.ServicePubSub, op, "subscription is required")
	}
	if len(ackIDs) == 0 {
		return nil
	}

	if err := x.backend.Acknowledge(ctx, sub, ackIDs); err != nil {
		return opError(types.ServicePubSub, op, err)
	}
	return nil
}

func (x *PubSub) Close() error {
	return x.backend.Close()
}
