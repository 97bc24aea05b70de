package cli

import (
	"context"

	"github.com/harukit/echosync/pkg/utils/logging"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	// The original deployment keeps the API key in a .env file next to
	// the binary; environment variables already set take precedence.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "echosync",
		Usage: "Mirror ElevenLabs generation history into a local archive",
		Commands: []*cli.Command{
			syncCommand(),
			serveCommand(),
			statusCommand(),
			resetCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
