package migration

import (
	"context"
	"fmt"
	"sync"
)

// Batch runs one migration pipeline per contract address. Pipelines execute
// concurrently and independently; one contract's failure or slow poll never
// blocks or corrupts another's.
type Batch struct {
	Pipeline *Pipeline
	// Concurrency caps the number of in-flight pipelines. Zero means
	// unlimited, matching the reference behavior of starting every
	// pipeline eagerly.
	Concurrency int
	// Reporter receives start/finish notifications per address; it never
	// affects results or their ordering. Nil disables reporting.
	Reporter Reporter
}

// MigrateAll migrates every address and returns exactly one result per
// input address, in input order, regardless of completion order. No entry
// is ever dropped.
func (b *Batch) MigrateAll(ctx context.Context, addresses []string) []AddressResult {
	reporter := b.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}

	results := make([]AddressResult, len(addresses))

	var sem chan struct{}
	if b.Concurrency > 0 {
		sem = make(chan struct{}, b.Concurrency)
	}

	var wg sync.WaitGroup
	for i, address := range addresses {
		wg.Add(1)
		go func(i int, address string) {
			defer wg.Done()
			defer func() {
				// A panicking pipeline must not take its siblings down;
				// record it as that address's failure.
				if r := recover(); r != nil {
					results[i] = AddressResult{
						Address: address,
						Err:     fmt.Errorf("migration panicked: %v", r),
					}
					reporter.Finished(address, OutcomeUnknown, results[i].Err)
				}
			}()

			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			reporter.Started(address)
			outcome, err := b.Pipeline.Migrate(ctx, address)
			results[i] = AddressResult{Address: address, Outcome: outcome, Err: err}
			reporter.Finished(address, outcome, err)
		}(i, address)
	}
	wg.Wait()

	return results
}
