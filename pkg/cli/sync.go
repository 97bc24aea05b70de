package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/harukit/echosync/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func syncCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "sync",
		Usage: "Run one sync to completion in the foreground",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setup()

			runner, err := cfg.newRunner()
			if err != nil {
				return err
			}

			// The run gets its own context: SIGINT translates into a stop
			// at the next page boundary instead of killing in-flight
			// requests, so the current page still commits all-or-nothing
			if _, started := runner.Start(context.Background()); !started {
				return goerr.New("a sync run is already active")
			}
			go func() {
				<-ctx.Done()
				runner.Stop()
			}()

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
			s.Suffix = " syncing history"
			s.Start()

			progressDone := make(chan struct{})
			go func() {
				ticker := time.NewTicker(500 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-progressDone:
						return
					case <-ticker.C:
						p := runner.Status().Progress
						s.Suffix = fmt.Sprintf(" syncing history (%d pages, %d records)",
							p.Pages, p.RecordsArchived+p.RecordsSkipped)
					}
				}
			}()

			// Wait on a fresh context: cancellation is already translated
			// into a page-boundary stop above
			_ = runner.Wait(context.Background())
			close(progressDone)
			s.Stop()

			st := runner.Status()
			fmt.Fprintf(c.Root().Writer, "state:\t%s\npages:\t%d\narchived:\t%d\nskipped:\t%d\naudio fetched:\t%d\naudio missing:\t%d\n",
				st.State,
				st.Progress.Pages,
				st.Progress.RecordsArchived,
				st.Progress.RecordsSkipped,
				st.Progress.ArtifactsFetched,
				st.Progress.ArtifactsMissing,
			)

			if st.State == model.SyncFailed {
				return goerr.New("sync failed", goerr.V("cause", st.LastError))
			}
			return nil
		},
	}
}
