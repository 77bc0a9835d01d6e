package processor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// parallelRanges 把 [0,n) 切成不相交的区间并发执行；fn 只能写自己区间内的结果
func parallelRanges(ctx context.Context, n, workers int, fn func(ctx context.Context, worker, lo, hi int) error) error {
	if n == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		worker := w
		g.Go(func() error {
			return fn(ctx, worker, lo, hi)
		})
	}
	return g.Wait()
}
