package uid

import "github.com/google/uuid"

// NewSessionID returns a random identifier for a match.
func NewSessionID() string {
	return uuid.NewString()
}
