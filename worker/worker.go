package worker

import "context"

// Worker runs until ctx is cancelled. A non-nil error means it gave up early.
type Worker interface {
	Start(ctx context.Context) error
}
