// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidArgument rejects malformed request input.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Authentication errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Invitation errors
	CodeInvitationAlreadyAccepted Code = "INVITATION_ALREADY_ACCEPTED"

	// Remote wallet errors
	CodeRemoteExchangeFailed Code = "REMOTE_EXCHANGE_FAILED"
)

// HTTPStatus maps domain codes to HTTP response statuses.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvitationAlreadyAccepted:
		return http.StatusConflict
	// Retryable: the wallet agent failed, nothing was committed.
	case CodeRemoteExchangeFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
