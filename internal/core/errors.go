package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when required settings are missing
	ErrConfiguration = errors.New("configuration error")
	// ErrRuleLoad is returned when the rule resource cannot be read
	ErrRuleLoad = errors.New("failed to load rules")
	// ErrRuleSave is returned when the rule resource cannot be written
	ErrRuleSave = errors.New("failed to save rules")
	// ErrReviewFailed wraps every failure on the review path. A review that
	// returns it produced no verdict.
	ErrReviewFailed = errors.New("review request failed")
)

// CensorErrorKind classifies a failed remote censor call
type CensorErrorKind string

const (
	KindAuth      CensorErrorKind = "auth"
	KindTransport CensorErrorKind = "transport"
	KindProvider  CensorErrorKind = "provider"
	KindTimeout   CensorErrorKind = "timeout"
)

// CensorError is the uniform failure type of remote censor calls
type CensorError struct {
	Kind    CensorErrorKind
	Code    int
	Message string
	Err     error
}

func (e *CensorError) Error() string {
	switch {
	case e.Kind == KindProvider:
		return fmt.Sprintf("censor %s error %d: %s", e.Kind, e.Code, e.Message)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("censor %s error: %s: %v", e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("censor %s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("censor %s error: %s", e.Kind, e.Message)
	}
}

func (e *CensorError) Unwrap() error {
	return e.Err
}

// NewAuthError builds an auth failure
func NewAuthError(msg string, err error) *CensorError {
	return &CensorError{Kind: KindAuth, Message: msg, Err: err}
}

// NewTransportError builds a transport failure
func NewTransportError(msg string, err error) *CensorError {
	return &CensorError{Kind: KindTransport, Message: msg, Err: err}
}

// NewTimeoutError builds a timeout failure
func NewTimeoutError(err error) *CensorError {
	return &CensorError{Kind: KindTimeout, Message: "request timed out", Err: err}
}

// NewProviderError builds a provider-reported failure
func NewProviderError(code int, msg string) *CensorError {
	return &CensorError{Kind: KindProvider, Code: code, Message: msg}
}

// CensorErrorKindOf returns the kind of a censor failure anywhere in the
// chain, or "" when err carries none
func CensorErrorKindOf(err error) CensorErrorKind {
	var ce *CensorError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
