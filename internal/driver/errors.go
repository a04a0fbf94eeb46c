package driver

import "fmt"

// CompileError wraps whichever phase error aborted a compilation, along
// with the compilation id it happened under, so the CLI and logging can
// both correlate a failure back to one invocation.
type CompileError struct {
	CompilationID string
	Phase         string
	cause         error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s phase: %s", e.CompilationID, e.Phase, e.cause)
}

func (e *CompileError) Unwrap() error { return e.cause }
