package copier

import (
	"errors"
	"fmt"
)

// Kind classifies a copy failure. Only ReadFailure is transient: a retry
// driver may re-attempt the copy or skip the file. Every other kind is
// fatal for the attempt and must not be downgraded.
type Kind int

const (
	// ReadFailure is any failure while opening or reading the source.
	ReadFailure Kind = iota + 1
	// WriteFailure is any failure while creating or writing the destination.
	WriteFailure
	// LengthMismatch means the destination byte count differs from the
	// source length after the copy.
	LengthMismatch
	// ChecksumMismatch means verification found differing checksums, or
	// verification could not be completed under strict policy.
	ChecksumMismatch
	// PromotionFailure means the delete/mkdirs/rename publish sequence failed.
	PromotionFailure
)

var kindNames = [...]string{
	ReadFailure:      "read failure",
	WriteFailure:     "write failure",
	LengthMismatch:   "length mismatch",
	ChecksumMismatch: "checksum mismatch",
	PromotionFailure: "promotion failure",
}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Error is a classified copy failure carrying enough context for diagnosis:
// the failure kind, the source and target paths, and the underlying cause.
type Error struct {
	Kind   Kind
	Source string
	Target string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s copying %s to %s", e.Kind, e.Source, e.Target)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or 0 if err is not a copy error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// IsRetriable reports whether err may sensibly be retried by an external
// driver. Only read-side failures qualify.
func IsRetriable(err error) bool {
	return KindOf(err) == ReadFailure
}
