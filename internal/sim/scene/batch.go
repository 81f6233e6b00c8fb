package scene

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Batch generates count scenes with seeds seed, seed+1, ... on at most workers
// goroutines. Results are in seed order. The first error cancels the rest.
func (gen *Generator) Batch(ctx context.Context, seed int64, count, workers int) ([]*Scene, error) {
	if workers < 1 {
		workers = 1
	}
	out := make([]*Scene, count)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := 0; i < count; i++ {
		i := i
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sc, err := gen.Generate(seed + int64(i))
			if err != nil {
				return err
			}
			out[i] = sc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
