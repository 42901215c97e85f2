package tool

import "encoding/json"

// ErrorValue is the flat error object returned to callers when an
// invocation fails. It carries a generic message only; the fault detail is
// reported through logs and observers.
type ErrorValue struct {
	Message string `json:"error"`
}

// Result is the outcome of one invocation: either the upstream payload
// passed through verbatim, or an ErrorValue.
type Result struct {
	Value any
	Err   *ErrorValue
}

// Success wraps an upstream payload.
func Success(value any) Result {
	return Result{Value: value}
}

// Failure builds a failed result with a generic message.
func Failure(message string) Result {
	if message == "" {
		message = "An error occurred while invoking the tool."
	}
	return Result{Err: &ErrorValue{Message: message}}
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// MarshalJSON renders the success payload as-is and failures as
// {"error": "<message>"}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(r.Err)
	}
	return json.Marshal(r.Value)
}
