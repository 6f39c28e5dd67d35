package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrNoCredentials is returned when a key pool has nothing to hand out.
	ErrNoCredentials = errors.New("no credentials available")
	// ErrAllProvidersExhausted is returned by the cascade when every provider failed or was skipped.
	ErrAllProvidersExhausted = errors.New("all ai providers exhausted")
	// ErrEmbeddingUnavailable indicates the similarity service is unconfigured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// ErrorKind tells the cascade how to react to a failed provider call.
type ErrorKind int

const (
	// KindTransient covers network failures, timeouts and 5xx responses.
	KindTransient ErrorKind = iota
	// KindRateLimited covers 429 and quota exhaustion.
	KindRateLimited
	// KindFatal covers malformed requests and authentication failures.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindFatal:
		return "fatal"
	default:
		return "transient"
	}
}

// ProviderError wraps a failed provider call with its classification.
type ProviderError struct {
	Provider   ProviderKind
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is returned by the raw HTTP backends for non-2xx responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Classify maps an error returned by a backend onto the retry taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindTransient
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Kind
	}

	if errors.Is(err, ErrNoCredentials) {
		return KindFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	if status := statusCodeOf(err); status != 0 {
		return classifyStatus(status)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	message := strings.ToLower(err.Error())
	if strings.Contains(message, "rate limit") || strings.Contains(message, "quota") || strings.Contains(message, "429") {
		return KindRateLimited
	}

	return KindTransient
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout:
		return KindTransient
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindFatal
	default:
		return KindTransient
	}
}

func statusCodeOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var requestErr *openai.RequestError
	if errors.As(err, &requestErr) {
		return requestErr.HTTPStatusCode
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

func newProviderError(kind ProviderKind, err error) *ProviderError {
	return &ProviderError{
		Provider:   kind,
		Kind:       Classify(err),
		StatusCode: statusCodeOf(err),
		Err:        err,
	}
}
