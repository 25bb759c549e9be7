// Package sandbox runs partially-trusted SQL against PostgreSQL on behalf of
// students and instructors.
//
// A request passes through four stages: the access gate decides whether the
// caller may see the logical database at all, the validator classifies the
// statement and applies a command policy, the copy manager resolves a
// per-requester physical clone for manipulation requests, and the execution
// engine runs the statement on a dedicated connection under a deadline.
//
// Every failure is returned as an *Error carrying a Kind from a closed set so
// that callers can map categories to user-facing messages.
package sandbox
