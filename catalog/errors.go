package catalog

import (
	"errors"
	"fmt"
)

// Kind classifies a FetchError.
type Kind int

const (
	KindNetwork Kind = iota
	KindTimeout
	KindStatus
	KindDecode
	KindUnknownRover
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindUnknownRover:
		return "unknown rover"
	case KindRateLimited:
		return "rate limited"
	default:
		return "network"
	}
}

// Sentinels matched by FetchError.Is, one per kind that callers branch on.
var (
	ErrTimeout      = errors.New("catalog request timed out")
	ErrUnknownRover = errors.New("unknown rover")
	ErrRateLimited  = errors.New("catalog rate limit exceeded")
)

// FetchError is a failed catalog request.
type FetchError struct {
	Op         string // rovers, cameras, manifest, photos
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("error fetching %s data (%s, status %d): %s", e.Op, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("error fetching %s data (%s): %s", e.Op, e.Kind, msg)
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrUnknownRover:
		return e.Kind == KindUnknownRover
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	}
	return false
}

// IsFetchError reports whether err came from the catalog client.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
