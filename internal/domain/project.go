package domain

import "time"

// Project groups the marketing jobs for a single property listing.
type Project struct {
	ID        string
	UserID    string
	Name      string
	Address   string
	CreatedAt time.Time
}
