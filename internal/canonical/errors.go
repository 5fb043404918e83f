package canonical

import "fmt"

// ParseErrorKind classifies a parser failure.
type ParseErrorKind string

const (
	MalformedSyntax          ParseErrorKind = "malformed_syntax"
	UnsupportedSchemaVersion ParseErrorKind = "unsupported_schema_version"
	MissingRequiredField     ParseErrorKind = "missing_required_field"
	InvalidReference         ParseErrorKind = "invalid_reference"
	DuplicateComponent       ParseErrorKind = "duplicate_component"
	OversizedField           ParseErrorKind = "oversized_field"
	UnsupportedFormat        ParseErrorKind = "unsupported_format"
)

// ParseError is the structured error every parser and the format detector
// return. Line and ByteOffset are zero when not known.
type ParseError struct {
	Kind       ParseErrorKind
	Line       int
	ByteOffset int64
	Field      string // populated for MissingRequiredField / DuplicateComponent / InvalidReference
	Message    string
	Err        error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s): %s", e.Kind, e.Message, e.Field, e.errString())
	}
	return fmt.Sprintf("%s: %s%s", e.Kind, e.Message, e.locationSuffix())
}

func (e *ParseError) errString() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.locationSuffix()
}

func (e *ParseError) locationSuffix() string {
	if e.Line > 0 {
		return fmt.Sprintf(" (line %d)", e.Line)
	}
	if e.ByteOffset > 0 {
		return fmt.Sprintf(" (byte %d)", e.ByteOffset)
	}
	return ""
}

func (e *ParseError) Unwrap() error { return e.Err }

// MatchingErrorKind classifies a matcher-setup failure.
type MatchingErrorKind string

const (
	InvalidRule MatchingErrorKind = "invalid_rule"
)

// MatchingError surfaces user-supplied rule-compilation failures. The
// matcher itself never fails on input data, only on invalid configuration.
type MatchingError struct {
	Kind    MatchingErrorKind
	Rule    string
	Message string
	Err     error
}

func (e *MatchingError) Error() string {
	return fmt.Sprintf("%s: %s (rule %q)", e.Kind, e.Message, e.Rule)
}

func (e *MatchingError) Unwrap() error { return e.Err }

// DiffErrorKind classifies a diff-engine failure.
type DiffErrorKind string

const (
	Cancelled         DiffErrorKind = "cancelled"
	Internal          DiffErrorKind = "internal"
	EnrichmentFailure DiffErrorKind = "enrichment_unavailable"
)

// DiffError is returned by the diff engine for fatal conditions. Phase
// conditions that are recoverable (GraphDiffCycleOverflow,
// EnrichmentUnavailable) are not DiffErrors; they are recorded as
// warnings on the result instead.
type DiffError struct {
	Kind    DiffErrorKind
	Message string
	Err     error
}

func (e *DiffError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DiffError) Unwrap() error { return e.Err }
