// Package tool defines the uniform adapter contract for external tools.
//
// The package is split by concern:
//   - schema: declarative tool/parameter descriptions
//   - adapter: the invocation contract and the Result sum type
//   - http_adapter: one-request-per-call REST wrapper driven by HTTPEndpoint data
//   - registry: name -> adapter mapping, discovery and validated dispatch
//   - validate: schema and argument diagnostics
//
// Adapters never let a fault cross their boundary. Transport, upstream and
// decode failures are logged and observed with their kind, then folded into
// a generic ErrorValue for the caller.
package tool
