package bus

import (
	"fmt"
	"time"
)

// ErrUnknownType is returned when Dispatch receives a message type with
// no registered handler. The error string is part of the protocol.
type ErrUnknownType struct {
	Type string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("Unknown message type: %s", e.Type)
}

// ErrDeliveryFailure is returned by a Target whose execution context no
// longer exists — a closed tab, a navigated-away page, an agent that was
// never injected. Distinct from a timeout: retrying without
// re-establishing the context will not help.
type ErrDeliveryFailure struct {
	Target string
	Cause  error
}

func (e *ErrDeliveryFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("bus: delivery to %s failed: %v", e.Target, e.Cause)
	}
	return fmt.Sprintf("bus: delivery to %s failed: target context absent", e.Target)
}

func (e *ErrDeliveryFailure) Unwrap() error { return e.Cause }

// ErrTimeout is returned when no response arrives within the Send
// timeout. The request is considered abandoned; the agent may still be
// processing, but the caller must not wait further.
type ErrTimeout struct {
	Type    string
	Timeout time.Duration
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("bus: %s timed out after %s", e.Type, e.Timeout)
}

// ErrInvalidResponse is returned when a response arrives but its shape
// does not match the expected contract.
type ErrInvalidResponse struct {
	Type   string
	Reason string
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("bus: invalid %s response: %s", e.Type, e.Reason)
}

// ErrAgentInternal is returned when the agent itself threw while
// handling a request.
type ErrAgentInternal struct {
	Type  string
	Cause error
}

func (e *ErrAgentInternal) Error() string {
	return fmt.Sprintf("bus: agent failed handling %s: %v", e.Type, e.Cause)
}

func (e *ErrAgentInternal) Unwrap() error { return e.Cause }
