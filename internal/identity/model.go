package identity

import "time"

// User represents a registered society member.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Credentials request structure.
type Credentials struct {
	Email       string
	Password    string
	DisplayName string
}
