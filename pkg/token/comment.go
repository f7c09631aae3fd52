package token

// CommentKind distinguishes line vs block comments.
type CommentKind int

// Comment kinds.
const (
	LineComment  CommentKind = iota // // comment
	BlockComment                    // /* comment */
)

// Comment is a Cypher comment with its position. Comments are collected by
// the lexer but never reach the parser.
type Comment struct {
	Kind CommentKind
	Text string // includes delimiters
	Span Span
}
