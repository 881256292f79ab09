package driving

import "context"

// Scheduler repeats reconciliation runs on a fixed interval.
type Scheduler interface {
	// Start runs immediately and then once per interval.
	// Blocks until Stop is called or the context is cancelled.
	Start(ctx context.Context) error

	// Stop ends the loop after any run in progress finishes.
	Stop() error
}
