package cmd

import (
	"github.com/secmon-lab/gcu/pkg/domain/types"
	"github.com/secmon-lab/gcu/pkg/utils"
	"github.com/urfave/cli/v2"
)

func secretCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "Secret Manager operations",
		Subcommands: []*cli.Command{
			secretGetCommand(rt),
		},
	}
}

func secretGetCommand(rt *runtime) *cli.Command {
	var version string

	return &cli.Command{
		Name:      "get",
		Usage:     "Print payload of a secret version",
		ArgsUsage: "SECRET",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "version",
				Usage:       "Secret version",
				Value:       "latest",
				Destination: &version,
			},
		},
		Action: func(c *cli.Context) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}

			sm, err := rt.agg.SecretManager(c.Context)
			if err != nil {
				return err
			}
			data, err := sm.GetSecretVersion(c.Context, types.SecretID(args[0]), version)
			if err != nil {
				return err
			}
			utils.SafeWrite(rt.out, data)
			return nil
		},
	}
}
