package rpc

import (
	"errors"
	"strings"

	"github.com/pipewright/pipewright/internal/protocol"
)

var (
	ErrDuplicateGUID   = errors.New("rpc: object already registered for guid")
	ErrUnknownCallID   = errors.New("rpc: no pending call for response id")
	ErrUnknownScope    = errors.New("rpc: unknown owner scope")
	ErrObjectCollected = errors.New("rpc: the object has been collected to prevent unbounded heap growth")
)

// DriverError carries a remote error's message and stack.
type DriverError struct {
	Name    string
	Message string
	Stack   string
}

func (e *DriverError) Error() string {
	return e.Message
}

// TimeoutError marks failures caused by a deadline, either signaled by the
// driver by name or raised locally by a wait race.
type TimeoutError struct {
	DriverError
}

// TargetClosedError marks operations that failed because the target (or the
// whole connection) went away.
type TargetClosedError struct {
	DriverError
}

const defaultTargetClosedMessage = "Target page, context or browser has been closed"

func NewTimeoutError(message string) *TimeoutError {
	return &TimeoutError{DriverError{Name: protocol.ErrorNameTimeout, Message: message}}
}

func NewTargetClosedError(cause string) *TargetClosedError {
	if cause == "" {
		cause = defaultTargetClosedMessage
	}
	return &TargetClosedError{DriverError{Name: protocol.ErrorNameTargetClosed, Message: cause}}
}

// parseError converts a remote error payload into its typed client error.
func parseError(p *protocol.ErrorPayload) error {
	switch p.Name {
	case protocol.ErrorNameTimeout:
		return &TimeoutError{DriverError{Name: p.Name, Message: p.Message, Stack: p.Stack}}
	case protocol.ErrorNameTargetClosed:
		return &TargetClosedError{DriverError{Name: p.Name, Message: p.Message, Stack: p.Stack}}
	default:
		return &DriverError{Name: p.Name, Message: p.Message, Stack: p.Stack}
	}
}

func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

func IsTargetClosedError(err error) bool {
	var tc *TargetClosedError
	return errors.As(err, &tc)
}

// IsSafeCloseError reports whether err is the benign "someone else already
// closed it" race. Only close() paths may consult this; any other operation
// must propagate the error.
func IsSafeCloseError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.HasSuffix(message, "Browser has been closed") ||
		strings.HasSuffix(message, defaultTargetClosedMessage)
}
