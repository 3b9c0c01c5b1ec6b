package cmd

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/controller/cmd/config"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/handler"
	"github.com/secmon-lab/gcu/pkg/utils"

	"github.com/urfave/cli/v2"
)

type runtime struct {
	agg            *handler.Aggregator
	handlerOptions []handler.Option
	out            io.Writer
}

type Option func(*runtime)

// WithHandlerOptions appends aggregator options after the ones built from flags
func WithHandlerOptions(options ...handler.Option) Option {
	return func(rt *runtime) {
		rt.handlerOptions = append(rt.handlerOptions, options...)
	}
}

// WithOutput sets the writer of command results. Default is stdout.
func WithOutput(w io.Writer) Option {
	return func(rt *runtime) {
		rt.out = w
	}
}

func Run(argv []string, options ...Option) error {
	rt := &runtime{out: os.Stdout}
	for _, opt := range options {
		opt(rt)
	}

	var (
		logger config.Logger
		sentry config.Sentry
		creds  config.Credentials
	)

	app := cli.App{
		Name:        "gcu",
		Usage:       "Google Cloud utilities",
		Description: "Operate BigQuery, Cloud Storage, Pub/Sub, Secret Manager, Cloud Tasks, Cloud Scheduler, Firestore and Datastore with one set of credentials",
		Version:     types.AppVersion,
		Flags:       mergeFlags([]cli.Flag{}, logger.Flags(), sentry.Flags(), creds.Flags()),
		Before: func(c *cli.Context) error {
			logger, err := logger.Configure()
			if err != nil {
				return err
			}
			utils.SetLogger(logger)

			if err := sentry.Configure(); err != nil {
				return err
			}

			handlerOptions, err := creds.Configure()
			if err != nil {
				return err
			}
			utils.Logger().Debug("configured", "credentials", &creds, "sentry", &sentry)

			handlerOptions = append(handlerOptions, handler.WithLogger(utils.Logger()))
			agg, err := handler.New(append(handlerOptions, rt.handlerOptions...)...)
			if err != nil {
				return goerr.Wrap(err, "failed to configure handlers")
			}
			rt.agg = agg

			return nil
		},
		After: func(c *cli.Context) error {
			if rt.agg == nil {
				return nil
			}
			if err := rt.agg.Close(); err != nil {
				utils.Logger().Warn("failed to close handlers", utils.ErrLog(err))
			}
			return nil
		},
		Commands: []*cli.Command{
			bigqueryCommand(rt),
			storageCommand(rt),
			pubsubCommand(rt),
			secretCommand(rt),
			tasksCommand(rt),
			schedulerCommand(rt),
			firestoreCommand(rt),
			datastoreCommand(rt),
			checkCommand(rt),
			serveCommand(rt),
			clientCommand(),
		},
	}

	if err := app.Run(argv); err != nil {
		utils.HandleError(context.Background(), "failed to run command", err)
		return err
	}

	return nil
}
