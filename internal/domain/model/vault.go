// Package model contains the domain entities shared across ports and adapters.
package model

import "time"

// Vault is a logical note destination identified by name, with the bearer
// credential used to deliver notes to it. APIKey is opaque to the core; it is
// only ever forwarded as an Authorization header.
type Vault struct {
	ID        int64
	Name      string
	APIKey    string
	UpdatedAt time.Time
}
