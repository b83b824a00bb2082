package kalshi

import (
	"errors"
	"fmt"
)

// Kind classifies an API failure so the control loop can pick a policy
// without string-matching: transient failures skip the cycle, auth
// failures degrade the controller to observation-only, malformed
// responses are logged and treated like missing data.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransient
	KindAuth
	KindMalformed
	KindRequest
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindMalformed:
		return "malformed"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// APIError is a classified venue failure.
type APIError struct {
	Op     string
	Kind   Kind
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("kalshi: %s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Body)
	}
	if e.Err != nil {
		return fmt.Sprintf("kalshi: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("kalshi: %s: %s", e.Op, e.Kind)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is an authentication/authorization failure.
func IsAuth(err error) bool {
	return errKind(err) == KindAuth
}

// IsTransient reports whether err is a retryable network/server failure.
func IsTransient(err error) bool {
	return errKind(err) == KindTransient
}

// IsMalformed reports whether err means the response could not be decoded.
func IsMalformed(err error) bool {
	return errKind(err) == KindMalformed
}

func errKind(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

func classifyStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429 || status >= 500:
		return KindTransient
	default:
		return KindRequest
	}
}
