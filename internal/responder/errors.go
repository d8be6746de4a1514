package responder

// SelectionError means the model-selection call failed or returned a
// value outside the known tiers. The message is shown to the user
// verbatim.
type SelectionError struct {
	Err error
}

func (e *SelectionError) Error() string { return e.Err.Error() }

func (e *SelectionError) Unwrap() error { return e.Err }

// CompletionError means a completion call inside the tool-call loop
// failed. The message is shown to the user verbatim.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string { return e.Err.Error() }

func (e *CompletionError) Unwrap() error { return e.Err }
