package domain

import (
	"fmt"
	"time"
)

// SourceKind identifies where a source's bytes live. The set is closed; adding
// a kind means adding a case to every dispatch over it.
type SourceKind string

const (
	SourceKindFile SourceKind = "file"
)

// MediaTypePDF is the only media type accepted for ingestion today.
const MediaTypePDF = "application/pdf"

// Source is a document submitted for ingestion. Sources are immutable.
type Source struct {
	ID          string
	Kind        SourceKind
	Location    string // storage key or path of the stored file
	FileName    string
	MediaType   string
	PrincipalID string
	CreatedAt   time.Time
}

// NewSource creates a new Source instance
func NewSource(kind SourceKind, location, fileName, mediaType, principalID string) *Source {
	return &Source{
		Kind:        kind,
		Location:    location,
		FileName:    fileName,
		MediaType:   mediaType,
		PrincipalID: principalID,
	}
}

// ValidateSource validates a Source before it is stored
func ValidateSource(s *Source) error {
	if s == nil {
		return fmt.Errorf("source cannot be nil")
	}

	if !IsValidSourceKind(s.Kind) {
		return fmt.Errorf("%w: %q", ErrInvalidSourceKind, s.Kind)
	}

	if s.Location == "" {
		return fmt.Errorf("%w: source Location", ErrMissingRequiredField)
	}

	if s.MediaType == "" {
		return fmt.Errorf("%w: source MediaType", ErrMissingRequiredField)
	}

	if s.PrincipalID == "" {
		return fmt.Errorf("%w: source PrincipalID", ErrMissingRequiredField)
	}

	return nil
}

// IsValidSourceKind reports whether k is a known source kind
func IsValidSourceKind(k SourceKind) bool {
	switch k {
	case SourceKindFile:
		return true
	}
	return false
}
