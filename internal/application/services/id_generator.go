package services

import (
	"sync"
	"time"
)

// IDGenerator produces habit ids
type IDGenerator func() int64

// NewTimestampIDGenerator returns a generator built on the wall clock in
// milliseconds. Ids are strictly increasing within the process: when the clock
// has not moved past the last id, the last id plus one is returned instead.
func NewTimestampIDGenerator(now func() time.Time) IDGenerator {
	if now == nil {
		now = time.Now
	}

	var (
		mu   sync.Mutex
		last int64
	)

	return func() int64 {
		mu.Lock()
		defer mu.Unlock()

		id := now().UnixMilli()
		if id <= last {
			id = last + 1
		}
		last = id
		return id
	}
}
