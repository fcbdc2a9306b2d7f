package optimistic

import "errors"

// FailureKind distinguishes why a remote operation failed. Every kind rolls
// back identically; the distinction only changes the notification text and
// the metrics label.
type FailureKind string

// Remote failure kinds.
const (
	// FailureTransport covers requests that never reached the server or
	// never returned.
	FailureTransport FailureKind = "transport"
	// FailureRejected covers non-2xx responses.
	FailureRejected FailureKind = "rejected"
	// FailureMalformed covers 2xx responses whose body could not be decoded.
	FailureMalformed FailureKind = "malformed"
)

// KindError is implemented by remote-operation errors that know their kind.
type KindError interface {
	error
	FailureKind() FailureKind
}

// Classify maps a remote-operation error to its failure kind. Errors that do
// not carry a kind count as transport failures.
func Classify(err error) FailureKind {
	var ke KindError
	if errors.As(err, &ke) {
		return ke.FailureKind()
	}
	return FailureTransport
}

func (k FailureKind) reason() string {
	switch k {
	case FailureRejected:
		return "the server rejected the change"
	case FailureMalformed:
		return "the server returned an unreadable response"
	default:
		return "a network error occurred"
	}
}
