package config

import (
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
	"github.com/urfave/cli/v2"
)

type Sentry struct {
	dsn string
	env string
}

func (x *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Category:    "Sentry",
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN for error reporting",
			EnvVars:     []string{"GCU_SENTRY_DSN"},
			Destination: &x.dsn,
		},
		&cli.StringFlag{
			Category:    "Sentry",
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			EnvVars:     []string{"GCU_SENTRY_ENV"},
			Destination: &x.env,
		},
	}
}

func (x *Sentry) Configure() error {
	if x.dsn == "" {
		utils.Logger().Debug("sentry is not enabled")
		return nil
	}

	utils.Logger().Info("Enable Sentry", "DSN", x.dsn, "env", x.env)
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         x.dsn,
		Environment: x.env,
		Release:     types.AppVersion,
	}); err != nil {
		return goerr.Wrap(err, "failed to initialize sentry", goerr.V("env", x.env))
	}

	return nil
}

func (x *Sentry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", x.dsn != ""),
		slog.String("env", x.env),
	)
}
