package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func statusCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "status",
		Usage: "Show the persisted checkpoint and archive counts",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setup()

			cp, err := cfg.newCheckpointStore().Load()
			if err != nil {
				return err
			}

			metadata, artifacts, err := cfg.newArchive().CountItems()
			if err != nil {
				return err
			}

			cursor := cp.Cursor
			if cursor == "" {
				cursor = "(none)"
			}
			fmt.Fprintf(c.Root().Writer, "cursor:\t%s\n", cursor)
			if !cp.UpdatedAt.IsZero() {
				fmt.Fprintf(c.Root().Writer, "updated:\t%s\n", cp.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(c.Root().Writer, "records:\t%d\naudio:\t%d\n", metadata, artifacts)

			return nil
		},
	}
}
