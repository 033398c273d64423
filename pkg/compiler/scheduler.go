package compiler

import (
	"context"
	"sync"
)

// DefaultWorkers bounds compile parallelism when Options.Workers is not
// set.
const DefaultWorkers = 8

// pool fans independent device compiles over a bounded set of workers.
// Each result lands at the index of the device that produced it, so the
// caller gets the batch back in input order regardless of completion
// order.
type pool struct {
	workers int
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &pool{workers: workers}
}

// run invokes compile for every index in [0, count) and returns the
// results in index order. compile handles cancellation itself, so a
// cancelled batch still yields one result per device.
func (p *pool) run(ctx context.Context, count int, compile func(ctx context.Context, i int) DeviceResult) []DeviceResult {
	results := make([]DeviceResult, count)
	if count == 0 {
		return results
	}

	workerCount := p.workers
	if count < workerCount {
		workerCount = count
	}

	work := make(chan int, count)
	for i := 0; i < count; i++ {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				results[i] = compile(ctx, i)
			}
		}()
	}
	wg.Wait()

	return results
}
