// Package api provides an HTTP client for the watchlist REST backend
// with authentication, error classification, and mutation replay support.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, api.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("api: bad request")
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrForbidden    = errors.New("api: forbidden")
	ErrNotFound     = errors.New("api: not found")
	ErrConflict     = errors.New("api: conflict")
	ErrServerError  = errors.New("api: server error")
)

// APIError wraps a sentinel error with the HTTP status code and the
// backend's error message for display and classification.
type APIError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// errorBody is the conventional JSON error shape returned by the backend.
// Either "detail" or "error" carries the human-readable message.
type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// extractMessage pulls the human-readable message out of a JSON error body,
// falling back to the raw body when it is not the conventional shape.
func extractMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Detail != "" {
			return eb.Detail
		}

		if eb.Error != "" {
			return eb.Error
		}
	}

	return string(body)
}

// Kind is the coarse failure category attached to a classified error.
type Kind string

// Failure kinds, ordered roughly by user impact.
const (
	KindNetwork    Kind = "network"
	KindPermission Kind = "permission"
	KindData       Kind = "data"
	KindServer     Kind = "server"
	KindUnknown    Kind = "unknown"
)

// Classification is the transient value computed from a raw failure. The
// Recoverable flag gates whether an interactive retry is offered.
type Classification struct {
	Kind        Kind
	Message     string
	Recoverable bool
}

// Classify turns a raw failure into a Classification. First match wins:
// a transport-level error (url.Error, net.Error) is network (recoverable);
// 403 is permission (terminal); 404 and 409 are data (terminal — 409 means
// the item already exists in the target, the server-side backstop for
// duplicate suppression); 5xx is server (recoverable); anything else is
// unknown and treated as recoverable so transient failures are not silently
// dropped.
func Classify(err error) Classification {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if isTransport(err) {
			return Classification{
				Kind:        KindNetwork,
				Message:     "could not reach the server",
				Recoverable: true,
			}
		}

		// Not a transport failure and no HTTP status either: a local
		// failure such as building or encoding the request.
		return Classification{
			Kind:        KindUnknown,
			Message:     err.Error(),
			Recoverable: true,
		}
	}

	switch {
	case apiErr.StatusCode == http.StatusForbidden:
		return Classification{
			Kind:        KindPermission,
			Message:     "you don't have permission for this action",
			Recoverable: false,
		}
	case apiErr.StatusCode == http.StatusNotFound:
		return Classification{
			Kind:        KindData,
			Message:     "the item or list no longer exists",
			Recoverable: false,
		}
	case apiErr.StatusCode == http.StatusConflict:
		return Classification{
			Kind:        KindData,
			Message:     "the item already exists in the target list",
			Recoverable: false,
		}
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return Classification{
			Kind:        KindServer,
			Message:     "the server had a problem, please try again",
			Recoverable: true,
		}
	default:
		return Classification{
			Kind:        KindUnknown,
			Message:     apiErr.Message,
			Recoverable: true,
		}
	}
}

// isTransport reports whether err comes from the network layer rather than
// from request construction. http.Client.Do always returns a *url.Error;
// net.Error covers dial and timeout failures surfaced directly.
func isTransport(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}
