package platform

import "github.com/google/uuid"

// NewID returns a random UUID, used as a correlation ID when the transport
// does not supply one.
func NewID() string {
	return uuid.New().String()
}
