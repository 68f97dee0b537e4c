// Package services holds the application logic of the studio: the generation
// flow, chat history, the gallery and billing. This file centralizes the
// service-level error values that handlers translate into HTTP responses.
package services

import "errors"

// Generation errors.
var (
	// ErrEmptyPrompt is returned when a generation or message request carries
	// no prompt text.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Gallery errors.
var (
	// ErrNoStats is returned by GalleryService.Stats when no database is wired.
	ErrNoStats = errors.New("gallery stats unavailable")
)

// Chat history errors.
var (
	// ErrChatNotFound indicates that the requested chat does not exist or is not
	// accessible to the current user.
	ErrChatNotFound = errors.New("chat not found")

	// ErrTooLong is returned when a message exceeds the configured rune limit.
	ErrTooLong = errors.New("message too long")

	// ErrMessageNotFound indicates that a referenced message does not exist.
	ErrMessageNotFound = errors.New("message not found")
)

// Billing errors.
var (
	// ErrPlanNotFound is returned for an unknown plan id.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPaymentsDisabled is returned when no payment gateway is configured.
	ErrPaymentsDisabled = errors.New("payments are not configured")
)
