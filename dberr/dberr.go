// Package dberr defines the small set of tagged error kinds shared by the
// pagefile, record and btree layers. The original storage core collapses
// every failure to a single non-zero integer; callers here need to tell
// "delete missing key" (NotFound) apart from "scan ran off the end" (not an
// error at all), so kinds are preserved instead of collapsed.
package dberr

import "github.com/pkg/errors"

// Kind tags the broad category of a storage-core failure.
type Kind int

const (
	// NotFound means the caller addressed something that does not exist:
	// a tombstoned or out-of-range RID, a delete of a key that was never
	// inserted (or already deleted). A missing file is reported as Io.
	NotFound Kind = iota
	// BadArgument means the caller passed a malformed or out-of-domain
	// argument (e.g. a page number past the end of the file, mismatched
	// schema arity).
	BadArgument
	// OutOfSpace means a record or index entry cannot fit on any page,
	// even a freshly appended one.
	OutOfSpace
	// Io means an underlying OS file operation failed.
	Io
	// Corrupt means an on-disk structure failed a sanity check that
	// should be impossible for well-typed inputs: a bad meta tag, an
	// internal page with fewer than 2 entries, a size mismatch after
	// decode.
	Corrupt
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case BadArgument:
		return "bad argument"
	case OutOfSpace:
		return "out of space"
	case Io:
		return "io"
	case Corrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Error is a storage-core failure tagged with a Kind and, usually, a
// wrapped cause from the stdlib or OS layer.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a message, no wrapped cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Wrap builds an Error of the given kind wrapping an existing error. If err
// is nil, Wrap returns nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, msg)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
