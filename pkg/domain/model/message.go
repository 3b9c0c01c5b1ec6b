package model

import (
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// PubSubBody is the envelope of a Pub/Sub push delivery
type PubSubBody struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription"`
}

type PubSubMessage struct {
	Attributes  map[string]string `json:"attributes"`
	Data        string            `json:"data"`
	MessageID   string            `json:"message_id"`
	PublishTime string            `json:"publish_time"`
}

// Decode returns the base64 decoded payload of the message
func (x *PubSubMessage) Decode() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(x.Data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode pubsub message data", goerr.V("message_id", x.MessageID))
	}
	return data, nil
}

// ReceivedMessage is a message returned by a synchronous pull
type ReceivedMessage struct {
	AckID           string
	ID              types.PubSubMessageID
	Data            []byte
	Attributes      map[string]string
	PublishTime     time.Time
	DeliveryAttempt int
}

// ArchivedMessage is the decoded form of a push delivery stored by the push receiver
type ArchivedMessage struct {
	Subscription string            `json:"subscription"`
	MessageID    string            `json:"message_id"`
	PublishTime  string            `json:"publish_time"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Data         []byte            `json:"data"`
	ReceivedAt   time.Time         `json:"received_at"`
}

func (x *ArchivedMessage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("subscription", x.Subscription),
		slog.String("message_id", x.MessageID),
		slog.String("publish_time", x.PublishTime),
		slog.Any("attributes", x.Attributes),
		slog.String("data", string(x.Data)),
		slog.Time("received_at", x.ReceivedAt),
	)
}

// SubscriptionConfig configures a new subscription. PushEndpoint empty means a pull subscription.
type SubscriptionConfig struct {
	Topic        types.PubSubTopicID
	PushEndpoint string
	AckDeadline  time.Duration
}

// PushState records that a push delivery has been handled. It is stored with the message ID as document ID.
type PushState struct {
	Subscription string    `json:"subscription"`
	ArchivedTo   string    `json:"archived_to,omitempty"`
	HandledAt    time.Time `json:"handled_at"`
}

func (x *PushState) Document() Document {
	return Document{
		"subscription": x.Subscription,
		"archived_to":  x.ArchivedTo,
		"handled_at":   x.HandledAt,
	}
}

// EnqueueResult summarizes published object batches
type EnqueueResult struct {
	Batches int
	Count   int64
	Size    int64
}
