package model

// User is a read-only directory row. The engine never mutates users; it only
// resolves display names and emails for listings and CSV export.
type User struct {
	ID       string // UUID
	FullName string
	Email    string
}
