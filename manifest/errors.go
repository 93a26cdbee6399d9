package manifest

import "fmt"

// ErrorKind classifies why resolution failed.
type ErrorKind string

const (
	// ErrMissingTarget means a target manifest name was given but no
	// document matched it.
	ErrMissingTarget ErrorKind = "missing_target"
	// ErrMultipleTargets means more than one Manifest document was found
	// and no target name was given to disambiguate them.
	ErrMultipleTargets ErrorKind = "multiple_targets"
	// ErrMissingKind means the document set lacks at least one Bundle,
	// one BundleGroup, or the (possibly targeted) Manifest.
	ErrMissingKind ErrorKind = "missing_kind"
	// ErrMissingReference means a name reference (a group in a manifest,
	// a bundle in a group, a dependency in a bundle) does not resolve to
	// any known document.
	ErrMissingReference ErrorKind = "missing_reference"
	// ErrCycle means resolving a bundle's dependencies would revisit a
	// bundle already being resolved higher up the same chain.
	ErrCycle ErrorKind = "cycle"
)

// Error reports a resolution failure along with its ErrorKind so callers
// can branch on the kind of failure without parsing the message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("manifest: %s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
