package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// The error taxonomy below governs how stages react to collaborator
// failures. Errors never cross a queue boundary as data: each stage
// classifies its own collaborator errors and recovers locally (retry, skip,
// fallback), except DeviceError which escalates to a global shutdown.

// TransientCollaboratorError marks a failure worth retrying (network,
// timeout). The calling stage retries with bounded backoff.
type TransientCollaboratorError struct {
	Op  string
	Err error
}

func (e *TransientCollaboratorError) Error() string {
	return fmt.Sprintf("transient collaborator error: %s: %v", e.Op, e.Err)
}

func (e *TransientCollaboratorError) Unwrap() error { return e.Err }

// PermanentCollaboratorError marks a failure that retrying cannot fix (auth,
// content policy). The turn is degraded with a fallback artifact and the
// pipeline continues.
type PermanentCollaboratorError struct {
	Op  string
	Err error
}

func (e *PermanentCollaboratorError) Error() string {
	return fmt.Sprintf("permanent collaborator error: %s: %v", e.Op, e.Err)
}

func (e *PermanentCollaboratorError) Unwrap() error { return e.Err }

// DeviceError marks a capture or output device failure. Fatal: it is the
// only error class that terminates the pipeline.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error: %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ProtocolError marks a malformed or out-of-order collaborator response. The
// offending item is dropped and the stage continues.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var t *TransientCollaboratorError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is a permanent collaborator rejection.
func IsPermanent(err error) bool {
	var p *PermanentCollaboratorError
	return errors.As(err, &p)
}

// IsDevice reports whether err is fatal to the pipeline.
func IsDevice(err error) bool {
	var d *DeviceError
	return errors.As(err, &d)
}

// classifyCollaboratorErr wraps an untyped collaborator error into the
// taxonomy. Context cancellation passes through unwrapped so shutdown is
// never mistaken for a collaborator failure. Untyped errors default to
// transient: a misjudged permanent error only costs the bounded retry budget.
func classifyCollaboratorErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var p *PermanentCollaboratorError
	if errors.As(err, &p) {
		return err
	}
	return &TransientCollaboratorError{Op: op, Err: err}
}
