package core

import (
	"errors"
)

// ErrorClass partitions upload failures into the classes that drive the
// retry decision. Only transient errors are ever retried.
type ErrorClass int

const (
	// ClassUnclassified covers unexpected errors (bugs, malformed paths).
	// Never retried: retrying cannot fix them and hides the defect.
	ClassUnclassified ErrorClass = iota
	// ClassTransient covers network and service errors (throttling,
	// transient 5xx). Retried with exponential backoff.
	ClassTransient
	// ClassCredentials covers missing or invalid credentials. Never retried.
	ClassCredentials
	// ClassAccessDenied covers permission failures. Never retried.
	ClassAccessDenied
	// ClassBucketMissing covers a nonexistent target bucket. Never retried.
	ClassBucketMissing
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassCredentials:
		return "credentials"
	case ClassAccessDenied:
		return "access_denied"
	case ClassBucketMissing:
		return "bucket_missing"
	default:
		return "unclassified"
	}
}

type classifiedError struct {
	class ErrorClass
	err   error
}

func (e *classifiedError) Error() string { return e.err.Error() }

func (e *classifiedError) Unwrap() error { return e.err }

// WithClass attaches an error class to err. The class survives wrapping with
// fmt.Errorf("%w") and is recovered by ClassOf.
func WithClass(err error, class ErrorClass) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: class, err: err}
}

// ClassOf returns the class attached to err, or ClassUnclassified when none
// was attached. Unknown errors are deliberately non-retryable.
func ClassOf(err error) ErrorClass {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.class
	}
	return ClassUnclassified
}

// Retryable reports whether err belongs to the transient class.
func Retryable(err error) bool {
	return ClassOf(err) == ClassTransient
}
