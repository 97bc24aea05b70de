package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/harukit/echosync/pkg/server"
	"github.com/harukit/echosync/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg       config
		addr      string
		autoStart bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address of the control surface",
			Value:       ":8600",
			Sources:     cli.EnvVars("ECHOSYNC_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "start",
			Usage:       "Trigger a sync run on startup",
			Destination: &autoStart,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the sync control surface over HTTP",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setup()
			logger := logging.Default()

			runner, err := cfg.newRunner()
			if err != nil {
				return err
			}

			// Sync runs live on their own context so a server shutdown
			// stops them at a page boundary rather than mid-request
			runCtx := context.Background()

			if autoStart {
				if st, started := runner.Start(runCtx); started {
					logger.Info("sync run triggered on startup", "run_id", st.RunID)
				}
			}

			httpServer := &http.Server{
				Addr:    addr,
				Handler: server.New(runCtx, runner).Router(),
			}

			errCh := make(chan error, 1)
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()
			logger.Info("control surface listening", "addr", addr)

			select {
			case err := <-errCh:
				return goerr.Wrap(err, "http server failed", goerr.V("addr", addr))
			case <-ctx.Done():
			}

			// Graceful shutdown: the active run stops at its page boundary
			// before the server goes away
			logger.Info("shutting down")
			runner.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := runner.Wait(shutdownCtx); err != nil {
				logger.Warn("sync run did not stop in time", "error", err)
			}
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shut down http server")
			}
			return nil
		},
	}
}
