package tool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FaultKind classifies why an invocation failed. The kind is reported to
// logs and observers but is not visible in the returned Result.
type FaultKind string

const (
	// FaultInvalidRequest covers URL or payload construction failures.
	FaultInvalidRequest FaultKind = "INVALID_REQUEST"
	// FaultTransport covers network errors, timeouts and cancellation.
	FaultTransport FaultKind = "TRANSPORT_FAILURE"
	// FaultUpstream covers non-2xx responses.
	FaultUpstream FaultKind = "UPSTREAM_FAILURE"
	// FaultDecode covers response bodies that are not valid JSON.
	FaultDecode FaultKind = "DECODE_FAILURE"
)

var (
	// ErrToolNotFound is returned when no tool is registered under a name.
	ErrToolNotFound = errors.New("tool: not found")
	// ErrDuplicateTool is returned when a name is registered twice.
	ErrDuplicateTool = errors.New("tool: duplicate name")
)

// Fault is the internal, detailed failure of one invocation.
type Fault struct {
	Kind   FaultKind
	Tool   string
	Status int
	Body   string
	Cause  error
}

func (f *Fault) Error() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(f.Kind))
	if f.Tool != "" {
		fmt.Fprintf(&b, " [%s]", f.Tool)
	}
	if f.Status != 0 {
		fmt.Fprintf(&b, ": status %d", f.Status)
	}
	if f.Cause != nil {
		fmt.Fprintf(&b, ": %v", f.Cause)
	}
	return b.String()
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (f *Fault) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Cause
}

// Timeout reports whether the fault was caused by a deadline.
func (f *Fault) Timeout() bool {
	if f == nil || f.Cause == nil {
		return false
	}
	if errors.Is(f.Cause, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(f.Cause, &netErr) && netErr.Timeout()
}

func newFault(kind FaultKind, toolName string, cause error) *Fault {
	return &Fault{Kind: kind, Tool: toolName, Cause: cause}
}

// FaultKindOf returns the fault kind carried by err, or "" if err is not a Fault.
func FaultKindOf(err error) FaultKind {
	var fault *Fault
	if errors.As(err, &fault) && fault != nil {
		return fault.Kind
	}
	return ""
}
