package model

import "errors"

// ErrInvalidInput marks an empty or malformed batch. It never escapes the engine;
// callers get an empty report plus a diagnostic instead.
var ErrInvalidInput = errors.New("invalid input")

type DiagnosticKind string

const (
	DiagParseWarning           DiagnosticKind = "ParseWarning"
	DiagUnresolvedDependency   DiagnosticKind = "UnresolvedDependency"
	DiagRecursionLimitExceeded DiagnosticKind = "RecursionLimitExceeded"
	DiagInvalidInput           DiagnosticKind = "InvalidInput"
)

// Diagnostic reports reduced completeness. It is never a finding.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Unit     string         `json:"unit,omitempty"`
	Contract string         `json:"contract,omitempty"`
	Function string         `json:"function,omitempty"`
	Message  string         `json:"message"`
}
