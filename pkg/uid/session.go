package uid

import (
	"fmt"

	"github.com/google/uuid"
)

// NewTokenID returns the unique id stamped into an issued login token.
func NewTokenID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate token ID: %w", err)
	}
	return id.String(), nil
}
