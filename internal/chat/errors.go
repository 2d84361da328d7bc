package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrorKind categorizes a failed model call for logs, metrics and the
// message shown to the client.
type ErrorKind int

const (
	ErrKindUnknown ErrorKind = iota
	ErrKindInvalidKey
	ErrKindQuota
	ErrKindNetwork
	ErrKindTimeout
	ErrKindEmptyResponse
	ErrKindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindInvalidKey:
		return "invalid_key"
	case ErrKindQuota:
		return "quota"
	case ErrKindNetwork:
		return "network_error"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindEmptyResponse:
		return "empty_response"
	case ErrKindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ModelInvocationError reports a failed call to the generative model.
// Timeout is set when the per-call deadline expired.
type ModelInvocationError struct {
	Message string
	Kind    ErrorKind
	Timeout bool
	Err     error
}

func (e *ModelInvocationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// classifyError turns an error from GenerateContent into a
// ModelInvocationError. ctxErr is the call context's error, which takes
// precedence: a deadline hit mid-call is reported as a timeout no matter
// how the SDK phrased it.
func classifyError(err, ctxErr error) *ModelInvocationError {
	switch {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return &ModelInvocationError{Message: "model call timed out", Kind: ErrKindTimeout, Timeout: true, Err: err}
	case errors.Is(ctxErr, context.Canceled):
		return &ModelInvocationError{Message: "model call cancelled", Kind: ErrKindCancelled, Err: err}
	}

	if code, ok := apiErrorCode(err); ok {
		switch {
		case code == 400:
			return &ModelInvocationError{Message: "model rejected the request", Kind: ErrKindUnknown, Err: err}
		case code == 401 || code == 403:
			return &ModelInvocationError{Message: "Gemini API key is invalid, expired, or lacks permissions", Kind: ErrKindInvalidKey, Err: err}
		case code == 429:
			return &ModelInvocationError{Message: "Gemini rate limit exceeded, try again later", Kind: ErrKindQuota, Err: err}
		case code == 504:
			return &ModelInvocationError{Message: "model call timed out", Kind: ErrKindTimeout, Timeout: true, Err: err}
		case code >= 500:
			return &ModelInvocationError{Message: fmt.Sprintf("Gemini service error (%d)", code), Kind: ErrKindNetwork, Err: err}
		}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "api key not valid") ||
		strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "api_key_invalid") ||
		strings.Contains(lower, "permission denied"):
		return &ModelInvocationError{Message: "Gemini API key is invalid or has been revoked", Kind: ErrKindInvalidKey, Err: err}
	case strings.Contains(lower, "quota") ||
		strings.Contains(lower, "resource exhausted") ||
		strings.Contains(lower, "rate limit"):
		return &ModelInvocationError{Message: "Gemini quota exceeded or rate limited", Kind: ErrKindQuota, Err: err}
	case strings.Contains(lower, "connection") ||
		strings.Contains(lower, "network") ||
		strings.Contains(lower, "dial") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "unreachable"):
		return &ModelInvocationError{Message: "network error while calling Gemini", Kind: ErrKindNetwork, Err: err}
	default:
		return &ModelInvocationError{Message: "model call failed", Kind: ErrKindUnknown, Err: err}
	}
}

// apiErrorCode extracts the HTTP status from a genai API error, whichever
// way the SDK wrapped it.
func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}
