package dispatch

import (
	"context"
)

// ====================================================================================
// This file defines the contracts for the external collaborators a Dispatcher
// routes messages through: envelope verification, routing validation, and the
// business-logic handler. Each has a Func adapter so callers can supply plain
// functions.
// ====================================================================================

// Verifier validates the authenticity and structure of a parsed message
// envelope. It returns the verified body, or an error on cryptographic or
// structural invalidity.
type Verifier interface {
	Verify(ctx context.Context, body map[string]any) (map[string]any, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, body map[string]any) (map[string]any, error)

func (f VerifierFunc) Verify(ctx context.Context, body map[string]any) (map[string]any, error) {
	return f(ctx, body)
}

// RouteValidator checks a message's routing metadata against configured
// expectations. A nil return means the message may proceed to the handler.
type RouteValidator interface {
	Validate(topic, messageType string) error
}

// RouteValidatorFunc adapts a function to the RouteValidator interface.
type RouteValidatorFunc func(topic, messageType string) error

func (f RouteValidatorFunc) Validate(topic, messageType string) error {
	return f(topic, messageType)
}

// Handler is the business logic invoked with a verified message. Backend
// failures should carry a machine-readable error code (smithy.APIError does);
// the dispatcher classifies the code to decide whether to retry.
type Handler interface {
	Handle(ctx context.Context, topic, messageType string, body map[string]any) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, topic, messageType string, body map[string]any) error

func (f HandlerFunc) Handle(ctx context.Context, topic, messageType string, body map[string]any) error {
	return f(ctx, topic, messageType, body)
}
