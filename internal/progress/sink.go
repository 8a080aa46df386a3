package progress

import "context"

// Sink consumes batches of progress events. Implementations must be safe for
// concurrent use; the hub serializes calls but tests may not.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
}
