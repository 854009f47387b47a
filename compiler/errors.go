package compiler

import (
	"fmt"

	"github.com/tidelang/tide/ast"
)

// OverflowError reports that the parsed representation is too deep or too
// wide for the job's stack budget. It is the stack-overflow-class failure
// of the pipeline: raised by Analyze before code generation is attempted,
// or recorded by Generate and surfaced at finalisation.
type OverflowError struct {
	Phase string // "analyse" or "generate"
	Pos   ast.Position
}

// Error implements error.
func (e *OverflowError) Error() string {
	return fmt.Sprintf("stack budget exceeded during %s at %d:%d", e.Phase, e.Pos.Line, e.Pos.Col)
}
