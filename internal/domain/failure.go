package domain

import (
	"fmt"
	"strings"
)

type FailureKind string

const (
	FailureNetwork      FailureKind = "network"
	FailureParse        FailureKind = "parse"
	FailureUnsupported  FailureKind = "unsupported"
	FailureSizeExceeded FailureKind = "size-exceeded"
	FailureTimeout      FailureKind = "timeout"
	FailureRateLimited  FailureKind = "rate-limited"
)

// Failure is an error that already knows its kind. Extraction code may return
// one to override the default classification.
type Failure struct {
	Kind   FailureKind
	Detail string
	Err    error
}

func NewFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Detail, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ExtractionFailure records why a single tier failed.
type ExtractionFailure struct {
	Tier   Method
	Kind   FailureKind
	Detail string
}

func (f ExtractionFailure) String() string {
	return fmt.Sprintf("%s: %s (%s)", f.Tier, f.Kind, f.Detail)
}

// ExtractionError is returned when every tier failed. Failures are in tier order.
type ExtractionError struct {
	Platform Platform
	URL      string
	Failures []ExtractionFailure
}

func (e *ExtractionError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("all extraction methods failed for %s: %s", e.URL, strings.Join(parts, "; "))
}

// FetchFailure records an item the fetcher could not resolve.
type FetchFailure struct {
	Index  int
	URL    string
	Kind   FailureKind
	Detail string
}

// DeliveryError is returned when a media result ends up with nothing deliverable.
type DeliveryError struct {
	URL      string
	Failures []FetchFailure
}

func (e *DeliveryError) Error() string {
	kinds := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		kinds = append(kinds, string(f.Kind))
	}
	return fmt.Sprintf("no media could be fetched for %s (%s)", e.URL, strings.Join(kinds, ", "))
}
