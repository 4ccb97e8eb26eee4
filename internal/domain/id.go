package domain

import (
	"strings"

	"github.com/google/uuid"
)

// NewID generates a UUIDv7 string for application-owned entities.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewQueryName returns a short, human-friendly identifier for a new query
// document, e.g. "QRY-0190a3f2c4".
func NewQueryName() string {
	raw := strings.ReplaceAll(NewID(), "-", "")
	return "QRY-" + raw[len(raw)-10:]
}

// DefaultQueryTitle derives a display title from a query name: "QRY-abc" -> "Query abc".
func DefaultQueryTitle(name string) string {
	return strings.Replace(name, "QRY-", "Query ", 1)
}
