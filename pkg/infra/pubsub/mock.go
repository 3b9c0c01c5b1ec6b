package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/interfaces"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// Mock is an in-memory Pub/Sub. Messages published to a topic are delivered to every subscription of the topic.
type Mock struct {
	MockPublish func(ctx context.Context, topic types.PubSubTopicID, data []byte, attrs map[string]string) (types.PubSubMessageID, error)

	Results       []*MockResult
	Topics        map[types.PubSubTopicID]bool
	Subscriptions map[types.PubSubSubscriptionID]*MockSubscription
	// PullSizes records maxMessages of every Pull call
	PullSizes []int
	Closed    bool

	ackSeq int
	mutex  sync.Mutex
}

type MockResult struct {
	ID         types.PubSubMessageID
	Topic      types.PubSubTopicID
	Data       []byte
	Attributes map[string]string
}

type MockSubscription struct {
	Config  model.SubscriptionConfig
	Pending []*model.ReceivedMessage
	Acked   []string
}

var _ interfaces.PubSub = &Mock{}

func NewMock() *Mock {
	return &Mock{
		Topics:        map[types.PubSubTopicID]bool{},
		Subscriptions: map[types.PubSubSubscriptionID]*MockSubscription{},
	}
}

func (x *Mock) CreateTopic(ctx context.Context, topic types.PubSubTopicID) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if x.Topics[topic] {
		return goerr.Wrap(types.ErrAlreadyExists, "topic already exists", goerr.V("topic", topic))
	}
	x.Topics[topic] = true
	return nil
}

func (x *Mock) CreateSubscription(ctx context.Context, sub types.PubSubSubscriptionID, cfg model.SubscriptionConfig) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if _, ok := x.Subscriptions[sub]; ok {
		return goerr.Wrap(types.ErrAlreadyExists, "subscription already exists", goerr.V("subscription", sub))
	}
	if !x.Topics[cfg.Topic] {
		return goerr.Wrap(types.ErrNotFound, "topic not found", goerr.V("topic", cfg.Topic))
	}
	x.Subscriptions[sub] = &MockSubscription{Config: cfg}
	return nil
}

func (x *Mock) Publish(ctx context.Context, topic types.PubSubTopicID, data []byte, attrs map[string]string) (types.PubSubMessageID, error) {
	if x.MockPublish != nil {
		return x.MockPublish(ctx, topic, data, attrs)
	}

	x.mutex.Lock()
	defer x.mutex.Unlock()

	id := types.PubSubMessageID(uuid.NewString())
	x.Results = append(x.Results, &MockResult{
		ID:         id,
		Topic:      topic,
		Data:       data,
		Attributes: attrs,
	})

	for _, s := range x.Subscriptions {
		if s.Config.Topic != topic || s.Config.PushEndpoint != "" {
			continue
		}
		x.ackSeq++
		s.Pending = append(s.Pending, &model.ReceivedMessage{
			AckID:       fmt.Sprintf("ack-%d", x.ackSeq),
			ID:          id,
			Data:        data,
			Attributes:  attrs,
			PublishTime: time.Now(),
		})
	}

	return id, nil
}

func (x *Mock) Pull(ctx context.Context, sub types.PubSubSubscriptionID, maxMessages int) ([]*model.ReceivedMessage, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.PullSizes = append(x.PullSizes, maxMessages)
	s, ok := x.Subscriptions[sub]
	if !ok {
		return nil, goerr.Wrap(types.ErrNotFound, "subscription not found", goerr.V("subscription", sub))
	}

	n := min(maxMessages, len(s.Pending))
	msgs := s.Pending[:n]
	s.Pending = s.Pending[n:]
	return msgs, nil
}

func (x *Mock) Acknowledge(ctx context.Context, sub types.PubSubSubscriptionID, ackIDs []string) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	s, ok := x.Subscriptions[sub]
	if !ok {
		return goerr.Wrap(types.ErrNotFound, "subscription not found", goerr.V("subscription", sub))
	}
	s.Acked = append(s.Acked, ackIDs...)
	return nil
}

func (x *Mock) Close() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Closed = true
	return nil
}
