// Package plugin is the plugin side of the host/plugin protocol.
//
// This file contains the error values returned by the API.
package plugin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/snowmerak/hubplug/lib/protocol"
)

var (
	// ErrChannelNotReady is returned when the API has no transport.
	ErrChannelNotReady = errors.New("channel not ready")

	// ErrUnexpectedBeforeInit is returned for any message other than Init
	// received before the handshake.
	ErrUnexpectedBeforeInit = errors.New("unexpected message before init")

	// ErrDuplicateInit is returned for an Init received after the handshake.
	// The first handshake stays in effect.
	ErrDuplicateInit = errors.New("duplicate init")

	// ErrNotInitialized is returned by accessors of handshake data before Init.
	ErrNotInitialized = errors.New("not initialized")

	// ErrUnsolicitedAnswer is returned for an answer no request is waiting for.
	ErrUnsolicitedAnswer = errors.New("unsolicited answer")

	// ErrRequestTimeout is returned when the host does not answer in time.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrCorrelationBusy is returned when a correlated request is installed
	// while another one is outstanding.
	ErrCorrelationBusy = errors.New("correlated request already in flight")

	// ErrStopped is returned by blocked calls once the host asked the plugin to stop.
	ErrStopped = errors.New("plugin stop requested")

	// ErrInvalidArgument is returned when an operation argument is missing or invalid.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAlreadyAnswered is returned when a host request is answered twice.
	ErrAlreadyAnswered = errors.New("request already answered")
)

// ErrUnknownMessageType is protocol.ErrUnknownMessageType, re-exported for callers of this package.
var ErrUnknownMessageType = protocol.ErrUnknownMessageType

// OperationError is returned by every outbound operation. It records the
// operation and its arguments next to the cause.
type OperationError struct {
	Op   string
	Args []any
	Err  error
}

func (e *OperationError) Error() string {
	args := make([]string, 0, len(e.Args))
	for _, a := range e.Args {
		args = append(args, fmt.Sprintf("%v", a))
	}
	return fmt.Sprintf("%s(%s): %v", e.Op, strings.Join(args, ", "), e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func opError(op string, err error, args ...any) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Args: args, Err: err}
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
