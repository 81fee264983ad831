package meow

import "errors"

// Error taxonomy for the pipeline. Handlers and conductors wrap these with
// fmt.Errorf("...: %w", ...) rather than carrying a bespoke error-code enum.
var (
	// ErrValidation marks a malformed pattern/recipe/rule/event, surfaced at
	// construction time. Never recovered — the caller must fix the input.
	ErrValidation = errors.New("validation error")

	// ErrBinding marks a rule whose pattern.recipe does not match recipe.name.
	ErrBinding = errors.New("binding error")

	// ErrRouting marks an event reaching a handler/conductor whose criteria
	// predicate rejects it.
	ErrRouting = errors.New("routing error")

	// ErrHashMismatch marks a triggering file that changed since the event
	// was recorded.
	ErrHashMismatch = errors.New("hash mismatch")

	// ErrConsistency marks a patterns/recipes map keyed inconsistently with
	// the name of the value it holds.
	ErrConsistency = errors.New("consistency error")
)
