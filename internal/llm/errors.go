package llm

import (
	"errors"
	"fmt"
)

// Kind classifies a failed generation call. The retry wrapper keys its
// policy off this: only KindRateLimited is ever retried.
type Kind int

const (
	KindOther Kind = iota
	KindQuota
	KindRateLimited
	KindRefused
	KindTruncated
)

func (k Kind) String() string {
	switch k {
	case KindQuota:
		return "quota"
	case KindRateLimited:
		return "rate_limited"
	case KindRefused:
		return "refused"
	case KindTruncated:
		return "truncated"
	default:
		return "other"
	}
}

// CallError is a classified failure from the generation capability.
type CallError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("generation %s: %s", e.Kind, e.Message)
}

func (e *CallError) Unwrap() error { return e.Err }

// KindOf extracts the classification from an error chain.
func KindOf(err error) Kind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindOther
}
