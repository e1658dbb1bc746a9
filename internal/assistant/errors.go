package assistant

import "github.com/pkg/errors"

// Component failures are converted to one of these before they reach
// the transport layer; nothing below the API surface panics or leaks
// raw provider errors to clients.
var (
	// ErrValidation marks a malformed or incomplete request. No state is
	// mutated when it is returned.
	ErrValidation = errors.New("invalid request")

	// ErrProviderUnavailable marks a language-model timeout or failure.
	// The caller receives a safe fallback message and the session is
	// returned to idle.
	ErrProviderUnavailable = errors.New("language model unavailable")
)

// FallbackMessage is the deterministic reply used when the language
// model cannot be reached. Raw errors are logged server-side only.
const FallbackMessage = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

// RetryMessage is the generic reply used when a dialogue transition
// failed and was rolled back.
const RetryMessage = "Sorry, something went wrong on my end. Could you say that again?"

// noMatchMessage is returned when a completed search yields no products,
// either because nothing scored or because no criteria could be derived
// from the utterance.
const noMatchMessage = "I couldn't find a good match for that. Could you describe what you're looking for differently?"
