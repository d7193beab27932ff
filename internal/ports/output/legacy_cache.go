package output

import "context"

// LegacyCache is the process-local key-value store that held registrations
// before the document store existed. The registry only reads from it.
type LegacyCache interface {
	// Get returns the value at key, or ErrCacheMiss.
	Get(ctx context.Context, key string) (string, error)
}

// ErrCacheMiss is returned by LegacyCache adapters when the key is absent.
var ErrCacheMiss = errCacheMiss{}

type errCacheMiss struct{}

func (errCacheMiss) Error() string { return "legacy cache: miss" }
