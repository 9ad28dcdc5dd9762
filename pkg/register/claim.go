package register

import "time"

// Identity names the operator session asking for a claim. Both strings
// are opaque to the locking machinery; the session identifier is what
// makes crash recovery of a session's own dangling claim possible.
type Identity struct {
	User      string
	SessionID string
	PID       int
}

// Claim records exclusive edit rights on one record.
type Claim struct {
	RecordID   string
	Holder     string
	SessionID  string
	PID        int
	AcquiredAt time.Time
}

// ClaimInfo is a read-only view of a live claim for operational
// visibility; it is never an input to exclusion decisions.
type ClaimInfo struct {
	Claim
	Age       time.Duration
	Corrupted bool
}

// StaleClaim describes a claim forcibly removed by a staleness sweep.
type StaleClaim struct {
	RecordID string
	Holder   string
	Age      time.Duration
}
