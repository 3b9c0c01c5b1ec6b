package cmd

import (
	"time"

	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/secmon-lab/gcu/pkg/utils"
	"github.com/urfave/cli/v2"
)

func pubsubCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "pubsub",
		Usage: "Pub/Sub operations",
		Subcommands: []*cli.Command{
			pubsubPublishCommand(rt),
			pubsubPullCommand(rt),
			pubsubCreateTopicCommand(rt),
			pubsubCreateSubscriptionCommand(rt),
		},
	}
}

func pubsubPublishCommand(rt *runtime) *cli.Command {
	var attrs cli.StringSlice

	return &cli.Command{
		Name:      "publish",
		Usage:     "Publish a message and print its ID",
		ArgsUsage: "TOPIC DATA",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "attr",
				Usage:       "Message attribute as key=value",
				Destination: &attrs,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 2)
			if err != nil {
				return err
			}
			kv, err := parseKeyValues(attrs.Value())
			if err != nil {
				return err
			}

			ps, err := rt.agg.PubSub(c.Context)
			if err != nil {
				return err
			}
			id, err := ps.Publish(c.Context, types.PubSubTopicID(args[0]), []byte(args[1]), kv)
			if err != nil {
				return err
			}
			utils.SafeWrite(rt.out, []byte(id.String()+"\n"))
			return nil
		},
	}
}

type pulledMessage struct {
	ID          types.PubSubMessageID `json:"id"`
	Data        string                `json:"data"`
	Attributes  map[string]string     `json:"attributes,omitempty"`
	PublishTime time.Time             `json:"publish_time"`
}

func pubsubPullCommand(rt *runtime) *cli.Command {
	var (
		maxMessages int
		ack         bool
	)

	return &cli.Command{
		Name:      "pull",
		Usage:     "Pull messages from a subscription",
		ArgsUsage: "SUBSCRIPTION",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "max",
				Aliases:     []string{"n"},
				Usage:       "Max number of messages",
				Value:       10,
				Destination: &maxMessages,
			},
			&cli.BoolFlag{
				Name:        "ack",
				Usage:       "Acknowledge pulled messages",
				Destination: &ack,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}
			sub := types.PubSubSubscriptionID(args[0])

			ps, err := rt.agg.PubSub(c.Context)
			if err != nil {
				return err
			}
			msgs, err := ps.Pull(c.Context, sub, maxMessages)
			if err != nil {
				return err
			}

			output := make([]*pulledMessage, 0, len(msgs))
			ackIDs := make([]string, 0, len(msgs))
			for _, msg := range msgs {
				output = append(output, &pulledMessage{
					ID:          msg.ID,
					Data:        string(msg.Data),
					Attributes:  msg.Attributes,
					PublishTime: msg.PublishTime,
				})
				ackIDs = append(ackIDs, msg.AckID)
			}

			if ack {
				if err := ps.Ack(c.Context, sub, ackIDs); err != nil {
					return err
				}
			}
			return printJSON(rt.out, output)
		},
	}
}

func pubsubCreateTopicCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "create-topic",
		Usage:     "Create a topic if it does not exist",
		ArgsUsage: "TOPIC",
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}

			ps, err := rt.agg.PubSub(c.Context)
			if err != nil {
				return err
			}
			return ps.CreateTopic(c.Context, types.PubSubTopicID(args[0]))
		},
	}
}

func pubsubCreateSubscriptionCommand(rt *runtime) *cli.Command {
	var (
		topic       string
		endpoint    string
		ackDeadline time.Duration
	)

	return &cli.Command{
		Name:      "create-subscription",
		Usage:     "Create a push or pull subscription if it does not exist",
		ArgsUsage: "SUBSCRIPTION",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "topic",
				Aliases:     []string{"t"},
				Usage:       "Topic ID",
				Required:    true,
				Destination: &topic,
			},
			&cli.StringFlag{
				Name:        "push-endpoint",
				Usage:       "Push endpoint URL, e.g. https://example.com/pubsub/push. Pull subscription if empty",
				Destination: &endpoint,
			},
			&cli.DurationFlag{
				Name:        "ack-deadline",
				Usage:       "Ack deadline",
				Value:       handler.DefaultAckDeadline,
				Destination: &ackDeadline,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}
			sub := types.PubSubSubscriptionID(args[0])

			ps, err := rt.agg.PubSub(c.Context)
			if err != nil {
				return err
			}
			if endpoint == "" {
				return ps.CreatePullSubscription(c.Context, types.PubSubTopicID(topic), sub, ackDeadline)
			}
			return ps.CreatePushSubscription(c.Context, types.PubSubTopicID(topic), sub, endpoint, ackDeadline)
		},
	}
}
