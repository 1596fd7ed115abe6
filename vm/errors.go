package vm

import "fmt"

// RuntimeError reports any failure the VM detects while executing
// bytecode: type mismatch, arity mismatch, index out of range,
// division/modulus by zero, missing global, missing attribute/method,
// stack/frame over- or underflow, jump out of range, bytecode
// truncation, unknown opcode.
type RuntimeError struct {
	Message string
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("💥 RUNTIME_ERROR: %s", e.Message)
}

// PanicError is the user-facing error raised by the `panic` native —
// still a runtime failure by category, but reported with the
// dedicated `PANIC!:` prefix and always exits 1.
type PanicError struct {
	Message string
}

func (e PanicError) Error() string {
	return fmt.Sprintf("PANIC!: %s", e.Message)
}
