// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package network

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ManuGH/qod/internal/domain/qos/ports"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUnavailable = errors.New("network: provider unreachable or transport failure")
	ErrTimeout     = errors.New("network: request timed out")
	ErrRejected    = errors.New("network: provider rejected the request")
	ErrBadResponse = errors.New("network: invalid response from provider")
)

// NetworkError wraps a sentinel with the operation and the provider's reply.
type NetworkError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // nested transport error
}

func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("network: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *NetworkError) Unwrap() error {
	return e.Sentinel
}

// StatusCode reports the provider's HTTP status, 0 for transport failures.
func (e *NetworkError) StatusCode() int { return e.Status }

// Detail returns the provider's response body.
func (e *NetworkError) Detail() string { return e.Body }

// Unavailable reports whether the failure is transient unreachability rather
// than a definite rejection.
func (e *NetworkError) Unavailable() bool {
	return errors.Is(e.Sentinel, ErrUnavailable) || errors.Is(e.Sentinel, ErrTimeout)
}

// classifyStatus maps a non-success provider status onto a sentinel.
func classifyStatus(status int) error {
	switch status {
	case http.StatusNotFound:
		return ports.ErrSubscriptionNotFound
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return ErrUnavailable
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return ErrTimeout
	default:
		return ErrRejected
	}
}

// isTransient selects the errors that count against the circuit breaker.
func isTransient(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Unavailable()
}

var _ ports.StatusCoder = (*NetworkError)(nil)
