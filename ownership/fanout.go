package ownership

import (
	"context"
	"sync"

	"github.com/shazhou-ww/casfa-sub002/codec"
)

// hasOwnershipBatchFanOut checks every delegateID concurrently and returns
// the first positive match in chain order. Bounded at <=16 (a delegate
// chain's max depth), so a native goroutine + sync.WaitGroup fan-out is
// used rather than pulling in golang.org/x/sync/errgroup for a handful of
// point lookups (see DESIGN.md "dropped candidate: errgroup").
func hasOwnershipBatchFanOut(ctx context.Context, idx *MetaIndex, nodeHash codec.Key, delegateIDs []string) (string, bool, error) {
	results := make([]bool, len(delegateIDs))
	errs := make([]error, len(delegateIDs))

	var wg sync.WaitGroup
	for i, id := range delegateIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			ok, err := idx.HasOwnership(ctx, nodeHash, id)
			results[i] = ok
			errs[i] = err
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return "", false, err
		}
	}
	for i, ok := range results {
		if ok {
			return delegateIDs[i], true, nil
		}
	}
	return "", false, nil
}
