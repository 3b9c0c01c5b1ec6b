package cmd

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/controller/cmd/config"
	"github.com/secmon-lab/gcu/pkg/controller/server"
	"github.com/secmon-lab/gcu/pkg/usecase"
	"github.com/secmon-lab/gcu/pkg/utils"
	"github.com/urfave/cli/v2"
)

func serveCommand(rt *runtime) *cli.Command {
	var cfg config.Server

	return &cli.Command{
		Name:  "serve",
		Usage: "Start Pub/Sub push receiver",
		Flags: cfg.Flags(),
		Action: func(c *cli.Context) error {
			utils.Logger().Info("starting server", "config", &cfg)

			serverOptions, err := cfg.ServerOptions()
			if err != nil {
				return err
			}

			uc := usecase.New(rt.agg, cfg.UseCaseOptions()...)
			srv := server.New(uc, serverOptions...)

			httpServer := &http.Server{
				Addr:              cfg.Addr,
				ReadHeaderTimeout: 3 * time.Second,
				Handler:           srv,
			}

			errCh := make(chan error, 1)
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
			defer signal.Stop(sigCh)

			go func() {
				defer close(errCh)
				utils.Logger().Info("listening", "addr", cfg.Addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "failed to listen", goerr.V("addr", cfg.Addr))
				}
			}()

			select {
			case sig := <-sigCh:
				utils.Logger().Info("received signal and shutting down", "signal", sig)
				if err := httpServer.Shutdown(c.Context); err != nil {
					return goerr.Wrap(err, "failed to shutdown server")
				}

			case err := <-errCh:
				return err
			}

			return nil
		},
	}
}
