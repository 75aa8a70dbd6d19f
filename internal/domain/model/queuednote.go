package model

import "time"

// QueuedNote is one durably recorded note awaiting confirmed delivery.
// ID is assigned by the store on insertion, is never reused, and doubles as
// the insertion-order tiebreaker when CreatedAt values collide. Note is an
// opaque markdown payload; the core never parses or transforms it.
type QueuedNote struct {
	ID        int64
	Vault     string
	Note      string
	CreatedAt time.Time
}
