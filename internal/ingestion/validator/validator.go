// Package validator checks ingestion records before they reach the catalog.
// The indexes assume well-formed keys; anything that would violate that is
// rejected here with per-field error details.
package validator

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/trie"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion"
)

const (
	maxNameLength = 256
	maxTagLength  = 128
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func result(errs map[string]string) error {
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidatePlayer requires a name the prefix trie can store.
func ValidatePlayer(r ingestion.PlayerRecord) error {
	errs := make(map[string]string)
	switch {
	case strings.TrimSpace(r.Name) == "":
		errs["name"] = "name is required"
	case len(r.Name) > maxNameLength:
		errs["name"] = fmt.Sprintf("name must be at most %d characters", maxNameLength)
	case !trie.Supported(r.Name):
		errs["name"] = "name contains characters outside the searchable alphabet"
	}
	return result(errs)
}

func ValidateTag(r ingestion.TagRecord) error {
	errs := make(map[string]string)
	tag := strings.TrimSpace(r.Tag)
	if tag == "" {
		errs["tag"] = "tag is required"
	} else if len(tag) > maxTagLength {
		errs["tag"] = fmt.Sprintf("tag must be at most %d characters", maxTagLength)
	}
	return result(errs)
}

func ValidateRating(r ingestion.RatingRecord) error {
	errs := make(map[string]string)
	if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
		errs["rating"] = "rating must be a finite number"
	} else if r.Score < 0 {
		errs["rating"] = "rating must not be negative"
	}
	return result(errs)
}
