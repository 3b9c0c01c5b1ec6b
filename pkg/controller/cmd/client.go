package cmd

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/utils"
	"github.com/urfave/cli/v2"
)

func clientCommand() *cli.Command {
	return &cli.Command{
		Name:    "client",
		Aliases: []string{"c"},
		Usage:   "Client of gcu push receiver",
		Subcommands: []*cli.Command{
			clientHealthCheck(),
		},
	}
}

func clientHealthCheck() *cli.Command {
	var (
		url string
	)

	return &cli.Command{
		Name:  "health",
		Usage: "Check health of gcu push receiver",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server-url",
				Aliases:     []string{"u"},
				EnvVars:     []string{"GCU_SERVER_URL"},
				Usage:       "URL of health endpoint",
				Destination: &url,
				Value:       "http://localhost:8080/health",
			},
		},
		Action: func(c *cli.Context) error {
			req, err := http.NewRequestWithContext(c.Context, http.MethodGet, url, nil)
			if err != nil {
				return goerr.Wrap(err, "failed to create request", goerr.V("url", url))
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return goerr.Wrap(err, "failed to send request", goerr.V("url", url))
			}
			defer utils.SafeClose(resp.Body)

			if resp.StatusCode != http.StatusOK {
				return goerr.New("server is not healthy", goerr.V("status", resp.Status))
			}

			utils.Logger().Info("Server is healthy", "url", url)

			return nil
		},
	}
}
