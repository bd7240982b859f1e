// Package cache holds small in-process caches for remote metadata.
package cache

import (
	"context"
	"time"
)

// Cache is a string-keyed cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches whose entries expire.
type Cleaner interface {
	CleanExpired() int
}

// RunCleanup evicts expired entries from every cleaner on each tick until
// ctx is done. It returns the total number of evicted entries.
func RunCleanup(ctx context.Context, interval time.Duration, cleaners ...Cleaner) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	total := 0
	for {
		select {
		case <-ticker.C:
			for _, c := range cleaners {
				total += c.CleanExpired()
			}
		case <-ctx.Done():
			return total
		}
	}
}
