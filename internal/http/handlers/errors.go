// Package handlers defines HTTP-layer error codes used by the chat history and
// billing endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Every error response carries an HTTP status and one of
// these codes:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "chat not found"
//	}
//
// POST /generate and GET /gallery keep their own {success, error} envelope
// (see GenerateResponse) because the web client reads it as is.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeSaveFailed       = "save_failed"
	ErrCodeDeleteFailed     = "delete_failed"
	ErrCodeCheckoutFailed   = "checkout_failed"
	ErrCodePaymentsDisabled = "payments_disabled"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
