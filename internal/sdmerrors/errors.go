// Package sdmerrors defines the error-kind taxonomy used across the core
// (spec.md §7) and a redaction helper for secrets that leak into error
// messages surfaced to chat or external status updates.
package sdmerrors

import (
	"regexp"

	"github.com/go-faster/errors"
)

// Kind classifies an error the way spec.md §7 does, so callers can decide
// whether the bus should retry the event or whether the outcome has already
// been persisted on the goal.
type Kind int

const (
	// KindConfiguration is a missing key or malformed rule — fatal at startup.
	KindConfiguration Kind = iota
	// KindValidation is an unknown push-test kind or missing required field.
	// Event processing fails and is retried by the bus.
	KindValidation
	// KindSignature is a signature rejection — the goal is marked failure,
	// the event itself is considered handled.
	KindSignature
	// KindTransient is a bus/source-control/K8s API error — event handling
	// fails so the bus retries.
	KindTransient
	// KindExecutor is an error captured from a goal executor — the goal is
	// marked failure, the event is considered handled.
	KindExecutor
	// KindScheduler is an error launching an isolated worker — the goal is
	// marked failure, the event is considered handled.
	KindScheduler
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindSignature:
		return "signature"
	case KindTransient:
		return "transient"
	case KindExecutor:
		return "executor"
	case KindScheduler:
		return "scheduler"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind so handlers can branch on
// "should the bus redeliver this" without string-matching messages.
type Error struct {
	kind Kind
	err  error
}

func New(kind Kind, msg string) error {
	return &Error{kind: kind, err: errors.New(msg)}
}

func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrap(err, msg)}
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() Kind    { return e.kind }

// KindOf extracts the Kind from err, defaulting to KindTransient for errors
// that were never classified (the conservative choice: an unclassified
// error is treated as retryable rather than silently swallowed).
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.kind
	}
	return KindTransient
}

// Retryable reports whether the bus should redeliver the event that produced
// err, per the propagation policy in spec.md §7: signature rejections,
// executor errors, and scheduler errors are all recorded on the goal and the
// event is considered handled; configuration and validation errors are not
// goal-scoped and must propagate; transient errors must be retried.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindValidation:
		return true
	default:
		return false
	}
}

// secretPatterns matches common credential shapes that must never reach a
// chat message or an external status description.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer|authorization)\s*[:=]\s*\S+`),
	regexp.MustCompile(`(?i)(token|secret|password|api[_-]?key)\s*[:=]\s*\S+`),
	regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`(?i)-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
	regexp.MustCompile(`https?://[^:/\s]+:[^@/\s]+@`),
}

// Redact strips known credential shapes from msg before it is placed on a
// goal event description, a chat message, or an external status update.
func Redact(msg string) string {
	out := msg
	for _, re := range secretPatterns {
		out = re.ReplaceAllString(out, "[REDACTED]")
	}
	return out
}
