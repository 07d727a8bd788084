// Package uuid generates run identifiers and the proxy session prefixes derived from them.
package uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator creates UUID v7 run identifiers.
type Generator struct{}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// NewRunID returns a time-ordered UUID7 string.
func (Generator) NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// SessionPrefix scopes proxy session names to a run so concurrent runs sharing a
// proxy never collide. The run ID is shortened to its random tail.
func SessionPrefix(base, runID string) string {
	short := strings.ReplaceAll(runID, "-", "")
	if len(short) > 8 {
		short = short[len(short)-8:]
	}
	if short == "" {
		return base
	}
	if base == "" {
		return short
	}
	return base + "_" + short
}
