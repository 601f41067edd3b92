package tryon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"tryon-studio/internal/imagenorm"
)

var (
	ErrMissingImage    = errors.New("image payload is missing")
	ErrSafetyRefused   = errors.New("generation refused by safety filter")
	ErrEmptyGeneration = errors.New("no image in response")
	ErrNotConfigured   = errors.New("generation credential is not configured")
	ErrInFlight        = errors.New("a try-on request is already in progress")
)

type ErrorKind string

const (
	KindSafetyRefused      ErrorKind = "safety_refused"
	KindPermissionDenied   ErrorKind = "permission_denied"
	KindRateLimited        ErrorKind = "rate_limited"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindEmptyGeneration    ErrorKind = "empty_generation"
	KindInvalidInput       ErrorKind = "invalid_input"
	KindUnknown            ErrorKind = "unknown"
)

func ParseErrorKind(code string) (ErrorKind, bool) {
	switch k := ErrorKind(strings.ToLower(strings.TrimSpace(code))); k {
	case KindSafetyRefused, KindPermissionDenied, KindRateLimited, KindServiceUnavailable,
		KindEmptyGeneration, KindInvalidInput, KindUnknown:
		return k, true
	default:
		return "", false
	}
}

func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindSafetyRefused:
		return http.StatusUnprocessableEntity
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindEmptyGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

const (
	MessageSafetyRefused      = "The AI blocked this request for safety reasons. Please try a different photo (avoid revealing clothing or complex poses)."
	MessagePermissionDenied   = "Permission denied. The API key is missing or access to the model is restricted. Please contact support."
	MessageRateLimited        = "Too many requests. Image generation is rate limited, please wait 30-60 seconds and try again."
	MessageServiceUnavailable = "The AI service is currently overloaded. Please try again in a moment."
	MessageEmptyGeneration    = "No image generated. The model might be busy or the input was filtered."
	MessageMissingImages      = "Images are missing. Please upload both your photo and a garment photo."
	MessageUnreadableImage    = "One of the images could not be read. Please upload a JPEG, PNG, GIF or WebP photo."
	MessageUnknown            = "Failed to generate try-on image."
)

type Failure struct {
	Kind    ErrorKind
	Message string
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

type RemoteError struct {
	StatusCode int
	Status     string
	// Kind is set when the remote already classified the failure.
	Kind    ErrorKind
	Message string
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString("remote error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " %d", e.StatusCode)
	}
	if e.Status != "" {
		fmt.Fprintf(&b, " %s", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// Classify maps an error to a failure. The checks run in a fixed priority
// order and every input, nil included, yields exactly one kind.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return Failure{Kind: KindUnknown, Message: MessageUnknown}
	case isSafetyRefused(err):
		return Failure{Kind: KindSafetyRefused, Message: MessageSafetyRefused}
	case isPermissionDenied(err):
		return Failure{Kind: KindPermissionDenied, Message: MessagePermissionDenied}
	case isRateLimited(err):
		return Failure{Kind: KindRateLimited, Message: MessageRateLimited}
	case isUnavailable(err):
		return Failure{Kind: KindServiceUnavailable, Message: MessageServiceUnavailable}
	case isEmptyGeneration(err):
		return Failure{Kind: KindEmptyGeneration, Message: MessageEmptyGeneration}
	case isInvalidInput(err):
		msg := MessageMissingImages
		var normErr *imagenorm.NormalizationError
		if errors.As(err, &normErr) {
			msg = MessageUnreadableImage
		}
		return Failure{Kind: KindInvalidInput, Message: msg}
	}

	msg := MessageUnknown
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) && remoteErr.Message != "" {
		msg = remoteErr.Message
	} else if text := strings.TrimSpace(err.Error()); text != "" {
		msg = text
	}
	return Failure{Kind: KindUnknown, Message: msg}
}

func remote(err error) (*RemoteError, bool) {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr, true
	}
	return nil, false
}

func isSafetyRefused(err error) bool {
	if errors.Is(err, ErrSafetyRefused) {
		return true
	}
	re, ok := remote(err)
	return ok && re.Kind == KindSafetyRefused
}

func isPermissionDenied(err error) bool {
	if errors.Is(err, ErrNotConfigured) {
		return true
	}
	re, ok := remote(err)
	if !ok {
		return false
	}
	if re.Kind != "" {
		return re.Kind == KindPermissionDenied
	}
	switch re.Status {
	case "PERMISSION_DENIED", "UNAUTHENTICATED":
		return true
	}
	return re.StatusCode == http.StatusUnauthorized || re.StatusCode == http.StatusForbidden
}

func isRateLimited(err error) bool {
	re, ok := remote(err)
	if !ok {
		return false
	}
	if re.Kind != "" {
		return re.Kind == KindRateLimited
	}
	return re.StatusCode == http.StatusTooManyRequests || re.Status == "RESOURCE_EXHAUSTED"
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	re, ok := remote(err)
	if !ok {
		return false
	}
	if re.Kind != "" {
		return re.Kind == KindServiceUnavailable
	}
	switch re.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return re.Status == "UNAVAILABLE" || re.Status == "DEADLINE_EXCEEDED"
}

func isEmptyGeneration(err error) bool {
	if errors.Is(err, ErrEmptyGeneration) {
		return true
	}
	re, ok := remote(err)
	return ok && re.Kind == KindEmptyGeneration
}

func isInvalidInput(err error) bool {
	if errors.Is(err, ErrMissingImage) {
		return true
	}
	var normErr *imagenorm.NormalizationError
	if errors.As(err, &normErr) {
		return true
	}
	re, ok := remote(err)
	return ok && re.Kind == KindInvalidInput
}
