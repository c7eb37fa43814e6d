// Package id generates identifiers for jobs and catalog rows.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate creates a prefixed NanoID, e.g. "job-V1StGXR8_Z5jdHi6B-myT".
// Used for job ids that have no deterministic dedupe key.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Row returns a new catalog row id. Version 7 UUIDs sort by creation time,
// which keeps sqlite primary key inserts roughly append-only.
func Row() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return u.String()
}

// IsRow reports whether s parses as a catalog row id.
func IsRow(s string) bool {
	return uuid.Validate(s) == nil
}
