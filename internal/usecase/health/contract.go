package health

import "context"

// StoragePinger checks durable storage availability.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// FlushReporter exposes the outcome of the last evidence flush.
type FlushReporter interface {
	LastFlushError() error
}
