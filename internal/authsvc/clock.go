package authsvc

import "wormhole-tracker/pkg/ids"

// Clock abstracts wall-clock time so tests can supply a fixed instant,
// mirroring jaytripper_esi::auth::Clock.
type Clock interface {
	Now() ids.Timestamp
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() ids.Timestamp { return ids.Now() }
