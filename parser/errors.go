package parser

import (
	"fmt"

	"github.com/tidelang/tide/ast"
)

// SyntaxError reports malformed source. It carries the 1-based position of
// the offending token so the failure record can point at it.
type SyntaxError struct {
	Msg string
	Pos ast.Position
}

// Error implements error.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Pos.Line, e.Pos.Col, e.Msg)
}

// DepthError reports that parsing exceeded the job's stack budget.
type DepthError struct {
	Pos ast.Position
}

// Error implements error.
func (e *DepthError) Error() string {
	return fmt.Sprintf("parse stack budget exceeded at %d:%d", e.Pos.Line, e.Pos.Col)
}
