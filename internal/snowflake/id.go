// Package snowflake provides a Mastodon compatible Snowflake ID generator.
package snowflake

import (
	"math/rand"
	"time"
)

// ID is a Snowflake ID; the top 48 bits encode the creation time in
// milliseconds, the low 16 bits are random.
type ID uint64

// Now returns a Snowflake ID for the current time.
func Now() ID {
	return TimeToID(time.Now())
}

// TimeToID converts a time.Time to a Snowflake ID.
func TimeToID(ts time.Time) ID {
	// 48 bits for time in milliseconds.
	// 0 bits for worker ID.
	// 0 bits for sequence.
	// 16 bits for random.
	return ID(uint64(ts.UnixNano()/int64(time.Millisecond))<<16 | uint64(rand.Intn(1<<16)))
}

// ToTime converts a Snowflake ID to a time.Time.
func (id ID) ToTime() time.Time {
	return time.Unix(0, int64(id>>16)*1e6)
}
