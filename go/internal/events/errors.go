package events

import "fmt"

// ValidationError reports a required field missing from an observation before
// the merge. This is the caller's bug: the normalizer must not hand partial
// data to the store.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field %s", e.Field)
}
