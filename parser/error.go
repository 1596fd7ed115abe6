package parser

import "fmt"

// SyntaxError reports an unexpected token or a failed consume (spec
// §7, stage "Parser").
type SyntaxError struct {
	Line    int
	Message string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("💥 PARSE_ERROR (line %d): %s", e.Line, e.Message)
}
