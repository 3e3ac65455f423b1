package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassPredicates(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name      string
		err       error
		transient bool
		permanent bool
		device    bool
	}{
		{"transient", &TransientCollaboratorError{Op: "x", Err: base}, true, false, false},
		{"permanent", &PermanentCollaboratorError{Op: "x", Err: base}, false, true, false},
		{"device", &DeviceError{Device: "mic", Err: base}, false, false, true},
		{"protocol", &ProtocolError{Op: "x", Err: base}, false, false, false},
		{"wrapped transient", fmt.Errorf("outer: %w", &TransientCollaboratorError{Op: "x", Err: base}), true, false, false},
		{"plain", base, false, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.transient {
				t.Errorf("IsTransient = %v, want %v", got, tc.transient)
			}
			if got := IsPermanent(tc.err); got != tc.permanent {
				t.Errorf("IsPermanent = %v, want %v", got, tc.permanent)
			}
			if got := IsDevice(tc.err); got != tc.device {
				t.Errorf("IsDevice = %v, want %v", got, tc.device)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	for _, err := range []error{
		&TransientCollaboratorError{Op: "x", Err: base},
		&PermanentCollaboratorError{Op: "x", Err: base},
		&DeviceError{Device: "mic", Err: base},
		&ProtocolError{Op: "x", Err: base},
	} {
		if !errors.Is(err, base) {
			t.Errorf("%T does not unwrap to the base error", err)
		}
	}
}

func TestClassifyCollaboratorErr(t *testing.T) {
	if got := classifyCollaboratorErr("op", nil); got != nil {
		t.Errorf("nil error classified as %v", got)
	}

	if got := classifyCollaboratorErr("op", context.Canceled); got != context.Canceled {
		t.Errorf("context.Canceled classified as %v", got)
	}
	if got := classifyCollaboratorErr("op", context.DeadlineExceeded); got != context.DeadlineExceeded {
		t.Errorf("context.DeadlineExceeded classified as %v", got)
	}

	perm := &PermanentCollaboratorError{Op: "auth", Err: errors.New("bad key")}
	if got := classifyCollaboratorErr("op", perm); got != error(perm) {
		t.Errorf("permanent error reclassified as %v", got)
	}

	got := classifyCollaboratorErr("op", errors.New("connection reset"))
	if !IsTransient(got) {
		t.Errorf("untyped error classified as %v, want transient", got)
	}
}
