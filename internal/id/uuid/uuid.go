// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// ReportPrefix is prepended to report identifiers.
const ReportPrefix = "report_"

// Generator creates UUID v7 strings, optionally prefixed.
type Generator struct {
	prefix string
}

// NewUUIDGenerator creates a Generator for bare UUIDs (job IDs).
func NewUUIDGenerator() *Generator {
	return &Generator{}
}

// NewReportIDGenerator creates a Generator whose IDs look like report_<uuid7>.
func NewReportIDGenerator() *Generator {
	return &Generator{prefix: ReportPrefix}
}

// NewID returns a UUID7 string with the generator's prefix.
func (g Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return g.prefix + id.String(), nil
}

// NewRawID returns a UUID7.
func (Generator) NewRawID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid7: %w", err)
	}
	return id, nil
}
