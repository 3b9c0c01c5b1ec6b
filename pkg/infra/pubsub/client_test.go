package pubsub_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/pstest"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/infra/pubsub"
	"github.com/secmon-lab/gcu/pkg/utils"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func setupFake(t *testing.T) *pubsub.Client {
	srv := pstest.NewServer()
	t.Cleanup(func() { utils.SafeClose(srv) })

	conn := gt.R1(grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))).NoError(t)
	t.Cleanup(func() { utils.SafeClose(conn) })

	ctx := context.Background()
	client := gt.R1(pubsub.New(ctx, "test-project",
		option.WithGRPCConn(conn),
		option.WithoutAuthentication(),
	)).NoError(t)
	t.Cleanup(func() { utils.SafeClose(client) })

	return client
}

func TestPublishAndPull(t *testing.T) {
	ctx := context.Background()
	client := setupFake(t)

	topic := types.PubSubTopicID("events")
	sub := types.PubSubSubscriptionID("events-pull")

	gt.NoError(t, client.CreateTopic(ctx, topic))
	gt.Error(t, client.CreateTopic(ctx, topic)).Is(types.ErrAlreadyExists)

	gt.NoError(t, client.CreateSubscription(ctx, sub, model.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	}))

	msgID := gt.R1(client.Publish(ctx, topic, []byte(`{"color":"blue"}`), map[string]string{"k": "v"})).NoError(t)
	gt.V(t, msgID).NotEqual("")

	msgs := gt.R1(client.Pull(ctx, sub, 10)).NoError(t)
	gt.A(t, msgs).Length(1).At(0, func(t testing.TB, v *model.ReceivedMessage) {
		gt.Equal(t, v.ID, msgID)
		gt.Equal(t, string(v.Data), `{"color":"blue"}`)
		gt.Equal(t, v.Attributes["k"], "v")
	})

	gt.NoError(t, client.Acknowledge(ctx, sub, []string{msgs[0].AckID}))
}

func TestPullMissingSubscription(t *testing.T) {
	ctx := context.Background()
	client := setupFake(t)

	_, err := client.Pull(ctx, "missing", 1)
	gt.Error(t, err).Is(types.ErrNotFound)
}

func TestPullOutOfRange(t *testing.T) {
	ctx := context.Background()
	client := setupFake(t)

	_, err := client.Pull(ctx, "missing", 0)
	gt.Error(t, err).Is(types.ErrInvalidOption)
}

func TestMockFanOut(t *testing.T) {
	ctx := context.Background()
	mock := pubsub.NewMock()

	gt.NoError(t, mock.CreateTopic(ctx, "t1"))
	gt.NoError(t, mock.CreateSubscription(ctx, "s1", model.SubscriptionConfig{Topic: "t1"}))
	gt.NoError(t, mock.CreateSubscription(ctx, "s2", model.SubscriptionConfig{Topic: "t1"}))
	gt.NoError(t, mock.CreateSubscription(ctx, "push", model.SubscriptionConfig{Topic: "t1", PushEndpoint: "https://example.com/push"}))

	gt.R1(mock.Publish(ctx, "t1", []byte("a"), nil)).NoError(t)

	gt.A(t, gt.R1(mock.Pull(ctx, "s1", 10)).NoError(t)).Length(1)
	gt.A(t, gt.R1(mock.Pull(ctx, "s2", 10)).NoError(t)).Length(1)
	gt.A(t, gt.R1(mock.Pull(ctx, "push", 10)).NoError(t)).Length(0)
	gt.A(t, gt.R1(mock.Pull(ctx, "s1", 10)).NoError(t)).Length(0)
}
