// internal/domain/errors.go
package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnauthorized is returned by providers when the API responds with HTTP 401.
// Callers can check for it using errors.Is to invalidate a cached token and retry.
var ErrUnauthorized = errors.New("unauthorized")

// Failure kinds. Every infrastructure failure wraps exactly one of them.
var (
	ErrNetwork          = errors.New("network error")
	ErrFileNotFound     = errors.New("file not found")
	ErrEmptyContentFile = errors.New("empty content file")
	ErrManifestParse    = errors.New("manifest parse error")
	ErrAuthentication   = errors.New("authentication failed")
	ErrValidator        = errors.New("validator error")
)

// Error attaches the failing path (a repository file or an endpoint) to a
// failure kind. It unwraps to both the kind and the underlying cause.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds an *Error.
func NewError(kind error, path string, err error) error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// NetworkError is a transport or HTTP failure on a remote call.
// Temporary errors are eligible for retry.
type NetworkError struct {
	Op         string
	StatusCode int
	Temporary  bool
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNetwork}
	}
	return []error{ErrNetwork, e.Err}
}

// IsTemporary reports whether err is a NetworkError worth retrying.
func IsTemporary(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.Temporary
}

// CheckTitle is the stable label stored in BuildResult metadata when a build
// is cancelled by an infrastructure failure.
type CheckTitle string

const (
	TitleFileNotFound     CheckTitle = "FileNotFound"
	TitleEmptyContentFile CheckTitle = "EmptyContentFile"
	TitleManifestParse    CheckTitle = "ManifestParse"
	TitleAuthentication   CheckTitle = "Authentication"
	TitleNetwork          CheckTitle = "Network"
	TitleValidator        CheckTitle = "Validator"
	TitleTimeout          CheckTitle = "Timeout"
	TitleInterrupted      CheckTitle = "Interrupted"
	TitleInternal         CheckTitle = "Internal"
)

// CheckTitleFor classifies an infrastructure failure.
// More specific kinds win over ErrNetwork, which many of them wrap.
func CheckTitleFor(err error) CheckTitle {
	switch {
	case errors.Is(err, ErrFileNotFound):
		return TitleFileNotFound
	case errors.Is(err, ErrEmptyContentFile):
		return TitleEmptyContentFile
	case errors.Is(err, ErrManifestParse):
		return TitleManifestParse
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrUnauthorized):
		return TitleAuthentication
	case errors.Is(err, ErrValidator):
		return TitleValidator
	case errors.Is(err, context.DeadlineExceeded):
		return TitleTimeout
	case errors.Is(err, context.Canceled):
		return TitleInterrupted
	case errors.Is(err, ErrNetwork):
		return TitleNetwork
	default:
		return TitleInternal
	}
}
