// Package runner drives the interactive chat session.
//
// Invariant:
//   - the log sent with a request is the enforced log: its token total is at
//     most the configured limit unless only the directive remains.
//
// Flow, once per input line:
//
//	append user -> enforce budget -> request completion -> append assistant -> persist
package runner
