package cypher

import (
	"fmt"

	"github.com/leapstack-labs/graphask/pkg/token"
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     token.Position
	Message string
	// Near is the literal of the token the parser stopped at.
	Near string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken    = "unexpected token %s, expected %s"
	ErrUnterminatedString = "unterminated string literal"
	ErrUnterminatedName   = "unterminated quoted name"
	ErrEmptyQuery         = "empty query"
	ErrMultipleStatements = "multiple statements are not allowed"
	ErrMissingReturn      = "query must end with RETURN or an updating clause"
	ErrReturnNotLast      = "RETURN must be the last clause"
	ErrWhereMisplaced     = "WHERE must follow MATCH, OPTIONAL MATCH or WITH"
	ErrUnionMixed         = "cannot mix UNION and UNION ALL"
	ErrUnknownClause      = "unknown clause %s"
	ErrInvalidRange       = "invalid variable length range"
)
