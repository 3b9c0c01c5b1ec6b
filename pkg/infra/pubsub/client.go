package pubsub

import (
	"context"
	"math"
	"sync"

	"cloud.google.com/go/pubsub"
	pubsubapi "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/apierr"
	"google.golang.org/api/option"
)

type Client struct {
	client     *pubsub.Client
	subscriber *pubsubapi.SubscriberClient
	projectID  types.GoogleProjectID

	topics map[types.PubSubTopicID]*pubsub.Topic
	mutex  sync.Mutex
}

var _ interfaces.PubSub = &Client{}

func New(ctx context.Context, projectID types.GoogleProjectID, options ...option.ClientOption) (*Client, error) {
	client, err := pubsub.NewClient(ctx, projectID.String(), options...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create pubsub client", goerr.V("projectID", projectID))
	}

	subscriber, err := pubsubapi.NewSubscriberClient(ctx, options...)
	if err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to create pubsub subscriber client", goerr.V("projectID", projectID))
	}

	return &Client{
		client:     client,
		subscriber: subscriber,
		projectID:  projectID,
		topics:     map[types.PubSubTopicID]*pubsub.Topic{},
	}, nil
}

func (x *Client) topic(id types.PubSubTopicID) *pubsub.Topic {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if t, ok := x.topics[id]; ok {
		return t
	}
	t := x.client.Topic(id.String())
	x.topics[id] = t
	return t
}

func (x *Client) CreateTopic(ctx context.Context, topic types.PubSubTopicID) error {
	if _, err := x.client.CreateTopic(ctx, topic.String()); err != nil {
		if apierr.IsAlreadyExists(err) {
			return goerr.Wrap(types.ErrAlreadyExists, "topic already exists", goerr.V("topic", topic))
		}
		return goerr.Wrap(err, "failed to create topic", goerr.V("topic", topic))
	}
	return nil
}

func (x *Client) CreateSubscription(ctx context.Context, sub types.PubSubSubscriptionID, cfg model.SubscriptionConfig) error {
	subCfg := pubsub.SubscriptionConfig{
		Topic:       x.client.Topic(cfg.Topic.String()),
		AckDeadline: cfg.AckDeadline,
	}
	if cfg.PushEndpoint != "" {
		subCfg.PushConfig = pubsub.PushConfig{Endpoint: cfg.PushEndpoint}
	}

	if _, err := x.client.CreateSubscription(ctx, sub.String(), subCfg); err != nil {
		if apierr.IsAlreadyExists(err) {
			return goerr.Wrap(types.ErrAlreadyExists, "subscription already exists", goerr.V("subscription", sub))
		}
		if apierr.IsNotFound(err) {
			return goerr.Wrap(types.ErrNotFound, "topic not found", goerr.V("topic", cfg.Topic))
		}
		return goerr.Wrap(err, "failed to create subscription", goerr.V("subscription", sub), goerr.V("topic", cfg.Topic))
	}
	return nil
}

func (x *Client) Publish(ctx context.Context, topic types.PubSubTopicID, data []byte, attrs map[string]string) (types.PubSubMessageID, error) {
	msgID, err := x.topic(topic).Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	}).Get(ctx)
	if err != nil {
		if apierr.IsNotFound(err) {
			return "", goerr.Wrap(types.ErrNotFound, "topic not found", goerr.V("topic", topic))
		}
		return "", goerr.Wrap(err, "failed to publish message", goerr.V("topic", topic))
	}
	return types.PubSubMessageID(msgID), nil
}

// Pull makes one synchronous pull request. It may return fewer messages than maxMessages, including none.
func (x *Client) Pull(ctx context.Context, sub types.PubSubSubscriptionID, maxMessages int) ([]*model.ReceivedMessage, error) {
	if maxMessages < 1 || maxMessages > math.MaxInt32 {
		return nil, goerr.Wrap(types.ErrInvalidOption, "maxMessages is out of range", goerr.V("maxMessages", maxMessages))
	}
	resp, err := x.subscriber.Pull(ctx, &pubsubpb.PullRequest{
		Subscription: model.SubscriptionPath(x.projectID, sub),
		MaxMessages:  int32(maxMessages),
	})
	if err != nil {
		if apierr.IsNotFound(err) {
			return nil, goerr.Wrap(types.ErrNotFound, "subscription not found", goerr.V("subscription", sub))
		}
		return nil, goerr.Wrap(err, "failed to pull messages", goerr.V("subscription", sub))
	}

	msgs := make([]*model.ReceivedMessage, 0, len(resp.ReceivedMessages))
	for _, rm := range resp.ReceivedMessages {
		m := &model.ReceivedMessage{
			AckID:           rm.AckId,
			DeliveryAttempt: int(rm.DeliveryAttempt),
		}
		if rm.Message != nil {
			m.ID = types.PubSubMessageID(rm.Message.MessageId)
			m.Data = rm.Message.Data
			m.Attributes = rm.Message.Attributes
			if rm.Message.PublishTime != nil {
				m.PublishTime = rm.Message.PublishTime.AsTime()
			}
		}
		msgs = append(msgs, m)
	}

	return msgs, nil
}

func (x *Client) Acknowledge(ctx context.Context, sub types.PubSubSubscriptionID, ackIDs []string) error {
	if len(ackIDs) == 0 {
		return nil
	}

	if err := x.subscriber.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
		Subscription: model.SubscriptionPath(x.projectID, sub),
		AckIds:       ackIDs,
	}); err != nil {
		return goerr.Wrap(err, "failed to acknowledge messages", goerr.V("subscription", sub), goerr.V("count", len(ackIDs)))
	}
	return nil
}

func (x *Client) Close() error {
	x.mutex.Lock()
	for _, t := range x.topics {
		t.Stop()
	}
	x.topics = map[types.PubSubTopicID]*pubsub.Topic{}
	x.mutex.Unlock()

	if err := x.subscriber.Close(); err != nil {
		_ = x.client.Close()
		return goerr.Wrap(err, "failed to close pubsub subscriber client")
	}
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close pubsub client")
	}
	return nil
}
