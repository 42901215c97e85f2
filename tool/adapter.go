package tool

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Args holds the named arguments of one invocation.
type Args map[string]any

// Names returns argument names in deterministic order.
func (a Args) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the argument rendered as a string, the form used when
// arguments are substituted into URLs and headers.
func (a Args) Lookup(name string) (string, bool) {
	value, ok := a[name]
	if !ok || value == nil {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// Invocation is the transient value describing one call. It is created per
// call and discarded after the adapter returns.
type Invocation struct {
	Args      Args          `json:"args"`
	RequestID string        `json:"request_id,omitempty"`
	Timeout   time.Duration `json:"-"`
}

// Adapter exposes one externally callable capability.
//
// Invoke must not panic or return faults to the caller: every failure is
// folded into a Result carrying an ErrorValue. Cancellation is cooperative
// through ctx.
type Adapter interface {
	Schema() Schema
	Invoke(ctx context.Context, inv Invocation) Result
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
