package cmd

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/model"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
	"github.com/urfave/cli/v2"
)

type queueFlags struct {
	location string
	queue    string
}

func (x *queueFlags) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "location",
			Usage:       "Location of the queue",
			EnvVars:     []string{"GCU_TASKS_LOCATION"},
			Required:    true,
			Destination: &x.location,
		},
		&cli.StringFlag{
			Name:        "queue",
			Aliases:     []string{"q"},
			Usage:       "Queue ID",
			EnvVars:     []string{"GCU_TASKS_QUEUE"},
			Required:    true,
			Destination: &x.queue,
		},
	}
}

func tasksCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Cloud Tasks operations",
		Subcommands: []*cli.Command{
			tasksCreateQueueCommand(rt),
			tasksCreateCommand(rt),
			tasksListCommand(rt),
		},
	}
}

func tasksCreateQueueCommand(rt *runtime) *cli.Command {
	var q queueFlags

	return &cli.Command{
		Name:  "create-queue",
		Usage: "Create a queue",
		Flags: q.Flags(),
		Action: func(c *cli.Context) error {
			tasks, err := rt.agg.Tasks(c.Context)
			if err != nil {
				return err
			}
			return tasks.CreateQueue(c.Context, types.GoogleLocation(q.location), types.TaskQueueID(q.queue))
		},
	}
}

func tasksCreateCommand(rt *runtime) *cli.Command {
	var (
		q              queueFlags
		url            string
		method         string
		payload        string
		delay          time.Duration
		serviceAccount string
	)

	return &cli.Command{
		Name:  "create",
		Usage: "Create an HTTP task and print its name",
		Flags: mergeFlags(q.Flags(), []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "Target URL",
				Required:    true,
				Destination: &url,
			},
			&cli.StringFlag{
				Name:        "method",
				Usage:       "HTTP method",
				Value:       "POST",
				Destination: &method,
			},
			&cli.StringFlag{
				Name:        "payload",
				Usage:       "JSON payload",
				Destination: &payload,
			},
			&cli.DurationFlag{
				Name:        "delay",
				Usage:       "Delay before dispatch",
				Destination: &delay,
			},
			&cli.StringFlag{
				Name:        "service-account",
				Usage:       "Service account email to attach an OIDC token",
				Destination: &serviceAccount,
			},
		}),
		Action: func(c *cli.Context) error {
			req := model.HTTPTaskRequest{
				Location:            types.GoogleLocation(q.location),
				Queue:               types.TaskQueueID(q.queue),
				URL:                 url,
				Method:              method,
				Delay:               delay,
				ServiceAccountEmail: serviceAccount,
			}
			if payload != "" {
				var v any
				if err := json.Unmarshal([]byte(payload), &v); err != nil {
					return goerr.Wrap(types.ErrInvalidOption, "payload must be JSON",
						goerr.V("payload", payload),
						goerr.V("error", err.Error()),
					)
				}
				req.Payload = v
			}

			tasks, err := rt.agg.Tasks(c.Context)
			if err != nil {
				return err
			}
			name, err := tasks.CreateHTTPTask(c.Context, req)
			if err != nil {
				return err
			}
			utils.SafeWrite(rt.out, []byte(name.String()+"\n"))
			return nil
		},
	}
}

func tasksListCommand(rt *runtime) *cli.Command {
	var q queueFlags

	return &cli.Command{
		Name:  "list",
		Usage: "List tasks of a queue",
		Flags: q.Flags(),
		Action: func(c *cli.Context) error {
			tasks, err := rt.agg.Tasks(c.Context)
			if err != nil {
				return err
			}
			list, err := tasks.ListTasks(c.Context, types.GoogleLocation(q.location), types.TaskQueueID(q.queue))
			if err != nil {
				return err
			}
			return printJSON(rt.out, list)
		},
	}
}
