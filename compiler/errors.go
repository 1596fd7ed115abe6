package compiler

import "fmt"

// CompileError reports a scope/declaration/use violation from spec
// §4.3 (stage "Compiler").
type CompileError struct {
	Line    int
	Message string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("💥 COMPILE_ERROR (line %d): %s", e.Line, e.Message)
}

// internalError reports a compiler-internal inconsistency (e.g. a
// jump patched against a buffer it was never emitted into) that
// should never surface from valid input — kept distinct from
// CompileError so callers can tell a user mistake from a bug.
type internalError struct {
	Message string
}

func (e internalError) Error() string {
	return fmt.Sprintf("🤖 COMPILER_BUG: %s", e.Message)
}
