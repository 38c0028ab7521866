package pdfexport

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forEachPage applies one pipeline stage to every page with bounded
// parallelism, waiting for the whole set to drain before returning. Pages
// are submitted in input order but may complete in any order; per-page
// state lives on the exportPage, so ordering of results is inherent.
//
// Cancellation makes the stage a no-op pass-through for pages not yet
// started: they return unchanged rather than erroring, letting scheduled
// work drain without partial document corruption.
func forEachPage(ctx context.Context, pages []*exportPage, limit int, stage func(context.Context, *exportPage) error) error {
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, page := range pages {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return stage(gctx, page)
		})
	}
	return g.Wait()
}
