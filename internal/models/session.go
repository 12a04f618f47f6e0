package models

import "time"

// Session is a row in the authoritative session store. A session exists
// from login until the user logs out, a newer login supersedes it, or
// the idle sweeper reaps it.
type Session struct {
	ID           string
	AccountID    string
	LastActivity time.Time
	CreatedAt    time.Time
}
