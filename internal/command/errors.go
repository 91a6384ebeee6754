package command

import "errors"

// Failure taxonomy for the command pipeline. The engine keys its retry
// decision off IsRetryable; everything else is dropped after logging.
var (
	// ErrNoActionRecognized: no intent alias scored above the acceptance
	// threshold for any span of the utterance. Not retryable - repeating
	// the same text yields the same score.
	ErrNoActionRecognized = errors.New("no action recognized")

	// ErrNoTargetResolved: the handler's resolver found nothing above its
	// threshold. Retryable - the screen may change between attempts.
	ErrNoTargetResolved = errors.New("no target resolved")

	// ErrTemplateMisuse: template syntax used outside an active recording.
	// Not retryable, dropped silently.
	ErrTemplateMisuse = errors.New("template used outside recording")

	// ErrModelUnavailable: transport error, timeout, or server-reported
	// exception from the model host. Retryable - transient outages should
	// self-heal within the retry budget.
	ErrModelUnavailable = errors.New("model host unavailable")

	// ErrUnknownIntent: the dispatch table has no handler for the resolved
	// kind. Internal inconsistency; the alias table and dispatch switch
	// must be kept in sync by construction.
	ErrUnknownIntent = errors.New("no handler for resolved intent")
)

// IsRetryable reports whether a handler failure should consume retry
// budget and be re-queued rather than dropped.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNoTargetResolved) || errors.Is(err, ErrModelUnavailable)
}
