package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func resetCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "reset",
		Usage: "Clear the checkpoint so the next sync restarts from the beginning",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setup()

			if err := cfg.newCheckpointStore().Reset(); err != nil {
				return err
			}

			fmt.Fprintln(c.Root().Writer, "checkpoint cleared")
			return nil
		},
	}
}
