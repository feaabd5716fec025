package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// FanOut hands items to a fixed number of workers. Each worker processes its
// items one at a time; workers run in parallel. The first error cancels the
// context passed to the remaining calls and is returned.
//
// Example:
//
//	err := FanOut(ctx, 4, paths, func(ctx context.Context, path string) error {
//	    return importFile(ctx, path)
//	})
func FanOut[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	itemChan := make(chan T)

	for range workers {
		g.Go(func() error {
			for item := range itemChan {
				if err := fn(ctx, item); err != nil {
					return err
				}
			}

			return nil
		})
	}

	g.Go(func() error {
		defer close(itemChan)

		for _, item := range items {
			select {
			case itemChan <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("fan out: %w", err)
	}

	return nil
}
