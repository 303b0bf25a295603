package engine

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/chviewgraph/pkg/core"
	"github.com/leapstack-labs/chviewgraph/pkg/parser"
	"github.com/leapstack-labs/chviewgraph/pkg/token"
)

// ParseError records a view whose SQL could not be parsed. The view keeps
// its node in the graph but contributes no edges.
type ParseError struct {
	View    core.QualifiedName
	Line    int
	Column  int
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.View, e.Detail())
}

// Detail returns the message with its position but without the view name.
func (e *ParseError) Detail() string {
	if pos := (token.Position{Line: e.Line, Column: e.Column}); pos.IsValid() {
		return pos.String() + ": " + e.Message
	}
	return e.Message
}

// newParseError attaches the view name to a parser failure.
func newParseError(view core.QualifiedName, err error) *ParseError {
	var perr *parser.ParseError
	if errors.As(err, &perr) {
		return &ParseError{
			View:    view,
			Line:    perr.Pos.Line,
			Column:  perr.Pos.Column,
			Offset:  perr.Offset(),
			Message: perr.Message,
		}
	}
	return &ParseError{View: view, Message: err.Error()}
}
