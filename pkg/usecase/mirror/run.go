package mirror

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harukit/echosync/pkg/adapter"
	"github.com/harukit/echosync/pkg/model"
	"github.com/harukit/echosync/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

func (x *Runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	logger := logging.From(ctx).With("run_id", x.Status().RunID)

	final, err := x.sync(ctx, logger)

	now := time.Now().UTC()
	x.mu.Lock()
	x.status.State = final
	x.status.FinishedAt = &now
	if err != nil {
		x.status.LastError = err.Error()
	}
	st := x.status
	x.mu.Unlock()

	if err != nil {
		logger.Error("sync run failed", "error", err, "progress", st.Progress)
		return
	}
	logger.Info("sync run finished",
		"state", final,
		"pages", st.Progress.Pages,
		"archived", st.Progress.RecordsArchived,
		"skipped", st.Progress.RecordsSkipped,
		"audio_missing", st.Progress.ArtifactsMissing,
	)
}

// sync drives the fetch -> persist -> checkpoint loop. Pages are
// strictly sequential: the next page is fetched only after the
// previous page's checkpoint is committed.
func (x *Runner) sync(ctx context.Context, logger *slog.Logger) (model.SyncState, error) {
	cp, err := x.checkpoints.Load()
	if err != nil {
		return model.SyncFailed, goerr.Wrap(err, "failed to load checkpoint")
	}
	cursor := cp.Cursor
	logger.Info("sync run started", "resume", cursor != "")

	for {
		if x.stopping() {
			logger.Info("stop requested, stopping at page boundary")
			return model.SyncStopped, nil
		}

		var page *model.Page
		fetchErr := x.policy().run(ctx, "fetch_page", func() error {
			p, err := x.client.FetchPage(ctx, cursor, x.cfg.PageSize)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if fetchErr != nil {
			return model.SyncFailed, goerr.Wrap(fetchErr, "failed to fetch history page",
				goerr.V("cursor", cursor))
		}

		if len(page.Items) == 0 {
			logger.Info("no more history")
			return model.SyncCompleted, nil
		}

		if err := x.persistPage(ctx, logger, page); err != nil {
			return model.SyncFailed, err
		}

		// The checkpoint advances only after every record of the page is
		// durably persisted. An empty next cursor is never saved: the
		// checkpoint keeps the last real cursor so the next run resumes
		// from the tail, and the idempotent writer absorbs the re-fetched
		// tail page.
		if page.NextCursor != "" {
			if err := x.checkpoints.Save(page.NextCursor); err != nil {
				return model.SyncFailed, goerr.Wrap(err, "failed to save checkpoint")
			}
		}
		x.bump(func(p *model.Progress) { p.Pages++ })

		if page.NextCursor == "" || !page.HasMore {
			return model.SyncCompleted, nil
		}
		cursor = page.NextCursor
	}
}

// persistPage writes metadata for every record, then fetches the
// missing artifacts through a bounded worker pool. It returns only
// once every record reached metadata-persisted and artifact-attempted
// state; the join is what makes the page checkpoint all-or-nothing.
func (x *Runner) persistPage(ctx context.Context, logger *slog.Logger, page *model.Page) error {
	var pending []*model.HistoryItem

	for _, item := range page.Items {
		if x.archive.HasMetadata(item.Time) {
			x.bump(func(p *model.Progress) { p.RecordsSkipped++ })
		} else {
			if _, err := x.archive.WriteMetadata(item); err != nil {
				return goerr.Wrap(err, "failed to write metadata", goerr.V("id", item.ID))
			}
			x.bump(func(p *model.Progress) { p.RecordsArchived++ })
		}

		if item.ArtifactRef() != "" && !x.archive.HasArtifact(item.Time) {
			pending = append(pending, item)
		}
	}

	if len(pending) == 0 {
		return nil
	}

	sem := make(chan struct{}, x.cfg.Concurrency)
	errCh := make(chan error, len(pending))
	var wg sync.WaitGroup

	for _, item := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(item *model.HistoryItem) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := x.syncArtifact(ctx, logger, item); err != nil {
				errCh <- err
			}
		}(item)
	}
	wg.Wait()
	close(errCh)

	// The first fatal error fails the page; the checkpoint is not
	// advanced past it.
	for err := range errCh {
		return err
	}
	return nil
}

// syncArtifact fetches and persists one audio artifact. A record whose
// fetch exhausts the retry budget is demoted to metadata-only; that is
// a recoverable defect, not a sync-fatal one.
func (x *Runner) syncArtifact(ctx context.Context, logger *slog.Logger, item *model.HistoryItem) error {
	err := x.policy().run(ctx, "fetch_artifact", func() error {
		r, err := x.client.FetchArtifact(ctx, item.ArtifactRef())
		if err != nil {
			return err
		}
		defer r.Close()
		return x.archive.WriteArtifact(item.Time, r)
	})

	switch {
	case err == nil:
		x.bump(func(p *model.Progress) { p.ArtifactsFetched++ })
		return nil

	case adapter.IsUnauthorized(err) || adapter.IsMalformed(err):
		return goerr.Wrap(err, "fatal error on artifact fetch", goerr.V("id", item.ID))

	case adapter.Retryable(err):
		logger.Warn("artifact fetch exhausted retries, keeping metadata only",
			"id", item.ID, "error", err)
		x.bump(func(p *model.Progress) { p.ArtifactsMissing++ })
		return nil

	default:
		// Local IO problems must not silently corrupt the archive
		return goerr.Wrap(err, "failed to persist artifact", goerr.V("id", item.ID))
	}
}
