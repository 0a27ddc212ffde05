// Package result provides the success/failure envelope returned by every
// public routing and feed-matrix operation.
package result

import "github.com/MaherFSF/Yemenactr-sub008/internal/apperr"

// Result carries either a payload or a failure reason, never both.
type Result[T any] struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    T      `json:"data"`
}

// OK wraps a successful payload.
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Empty is a successful call that has no opinion, e.g. an unknown source.
// The reason keeps it distinguishable from genuine data.
func Empty[T any](empty T, reason string) Result[T] {
	return Result[T]{Success: true, Reason: reason, Data: empty}
}

// Fail returns a failed result whose payload is the given empty value.
func Fail[T any](empty T, msg string, err error) Result[T] {
	return Result[T]{Success: false, Reason: apperr.Reason(err), Error: msg, Data: empty}
}

// Partial is a failed batch that still carries the scopes that succeeded.
func Partial[T any](data T, msg string, err error) Result[T] {
	return Result[T]{Success: false, Reason: apperr.Reason(err), Error: msg, Data: data}
}
