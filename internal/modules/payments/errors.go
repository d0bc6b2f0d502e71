package payments

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownGateway     = errors.New("unknown payment gateway")
	ErrMalformedPayload   = errors.New("malformed gateway payload")
	ErrMissingCorrelation = errors.New("payload carries no usable correlation id")
)

// GatewayError wraps a failed or timed-out provider call. A timeout is
// indistinguishable from an explicit failure for the caller.
type GatewayError struct {
	Gateway string
	Op      string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
