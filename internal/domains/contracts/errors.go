package contracts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"otme/go-client/pkg/models"
)

var (
	ErrEmptyReply       = errors.New("empty reply")
	ErrUnknownOperation = errors.New("unknown operation")
)

const (
	ErrorCategoryAPI     = "api"
	ErrorCategoryParse   = "parse"
	ErrorCategoryCrypto  = "crypto"
	ErrorCategoryStorage = "storage"
	ErrorCategoryNetwork = "network"
)

type CategorizedError struct {
	Category string
	Err      error
}

func (e *CategorizedError) Error() string {
	return e.Err.Error()
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

func normalizeErrorCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case ErrorCategoryParse:
		return ErrorCategoryParse
	case ErrorCategoryCrypto:
		return ErrorCategoryCrypto
	case ErrorCategoryStorage:
		return ErrorCategoryStorage
	case ErrorCategoryNetwork:
		return ErrorCategoryNetwork
	default:
		return ErrorCategoryAPI
	}
}

func WrapCategorizedError(category string, err error) error {
	if err == nil {
		return nil
	}
	var existing *CategorizedError
	if errors.As(err, &existing) {
		return &CategorizedError{
			Category: normalizeErrorCategory(existing.Category),
			Err:      existing.Err,
		}
	}
	return &CategorizedError{
		Category: normalizeErrorCategory(category),
		Err:      err,
	}
}

// ErrorCategory classifies err for metrics and log fields.
func ErrorCategory(err error) string {
	var classified *CategorizedError
	if errors.As(err, &classified) {
		return normalizeErrorCategory(classified.Category)
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return ErrorCategoryParse
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return ErrorCategoryNetwork
	}
	return ErrorCategoryAPI
}

// ParseError reports a reply that is empty or not a recognized reply
// envelope. It always maps to models.OutcomeError.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse reply: " + e.Reason
	}
	return fmt.Sprintf("parse reply: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func NewParseError(reason string, err error) *ParseError {
	return &ParseError{Reason: reason, Err: err}
}

// TransportErrorKind classifies why a round trip did not produce a reply.
type TransportErrorKind string

const (
	// TransportUnreachable: the request never reached the server.
	TransportUnreachable TransportErrorKind = "unreachable"
	// TransportTimeout: the request may have been delivered but no reply
	// arrived in time.
	TransportTimeout TransportErrorKind = "timeout"
	// TransportOutOfSync: the server refused the request number before
	// processing the request.
	TransportOutOfSync TransportErrorKind = "out_of_sync"
	// TransportPrecondition: a local prerequisite is missing; nothing was sent.
	TransportPrecondition TransportErrorKind = "precondition"
	// TransportProtocol: the peer answered with something that is not a
	// reply. The request may have been processed.
	TransportProtocol TransportErrorKind = "protocol"
)

type TransportError struct {
	Kind      TransportErrorKind
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	op := e.Operation
	if op == "" {
		op = "request"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: transport %s", op, e.Kind)
	}
	return fmt.Sprintf("%s: transport %s: %v", op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MaybeDelivered reports whether the server could have received and acted
// on the request. A missing reply is never proof that nothing happened.
func (e *TransportError) MaybeDelivered() bool {
	switch e.Kind {
	case TransportUnreachable, TransportOutOfSync, TransportPrecondition:
		return false
	default:
		return true
	}
}

func NewTransportError(kind TransportErrorKind, operation string, err error) *TransportError {
	return &TransportError{Kind: kind, Operation: operation, Err: err}
}

// AsTransportError normalizes any error returned by a transport. Context
// expiry becomes TransportTimeout; anything unclassified is treated as
// TransportProtocol so that it counts as possibly delivered.
func AsTransportError(operation string, err error) *TransportError {
	if err == nil {
		return nil
	}
	var existing *TransportError
	if errors.As(err, &existing) {
		if existing.Operation == "" {
			return &TransportError{Kind: existing.Kind, Operation: operation, Err: existing.Err}
		}
		return existing
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewTransportError(TransportTimeout, operation, err)
	}
	return NewTransportError(TransportProtocol, operation, err)
}

// VerificationFailure is a well-formed reply that was rejected at Tier.
type VerificationFailure struct {
	Tier      models.Tier
	Operation string
}

func (e *VerificationFailure) Error() string {
	return fmt.Sprintf("%s: rejected at %s tier", e.Operation, e.Tier)
}
