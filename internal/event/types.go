package event

import "time"

// SessionState is where the cycle controller currently sits.
type SessionState string

const (
	StateIdle     SessionState = "Idle"
	StateStudying SessionState = "Studying"
	StateOnBreak  SessionState = "OnBreak"
	StateEnded    SessionState = "Ended"
)

func (s SessionState) Active() bool {
	return s == StateStudying || s == StateOnBreak
}

// Used for communication channels

type StatusUpdate struct {
	State         SessionState
	RemainingTime time.Duration
	CycleCount    int // Study intervals completed in the current session
}

type Notification struct {
	Title   string
	Message string
}

// StorageFailure reports a fire-and-forget write that did not make it to the
// store. The session keeps running regardless.
type StorageFailure struct {
	Op  string
	Err error
}
