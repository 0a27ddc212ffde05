package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("store unavailable")
	ErrUnknownPage  = errors.New("unknown page key")
	ErrInvalidInput = errors.New("invalid input")
)

// Reason maps an error onto the short machine-readable failure reason
// carried by result envelopes.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnknownPage):
		return "unknown_page"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "unavailable"
	}
}
