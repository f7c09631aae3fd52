// Package token defines the token types for Cypher parsing.
//
// Keywords are matched case-insensitively. Most keywords are only reserved in
// clause position; the parser accepts them as label, relationship type,
// property key and function names.
package token

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // name or `quoted name`
	NUMBER // 123, 45.67, 1e10, 0x1F
	STRING // 'hello' or "hello"
	PARAM  // $name or $0

	// Operators
	PLUS     // +
	PLUSEQ   // +=
	MINUS    // -
	STAR     // *
	SLASH    // /
	PERCENT  // %
	CARET    // ^
	EQ       // =
	NE       // <>
	LT       // <
	GT       // >
	LE       // <=
	GE       // >=
	REGEX    // =~
	DOT      // .
	DOTDOT   // ..
	COMMA    // ,
	COLON    // :
	SEMI     // ;
	PIPE     // |
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }

	// Keywords (alphabetical)
	ALL
	ALTER
	AND
	ANY
	AS
	ASC
	ASCENDING
	BY
	CALL
	CASE
	CONSTRAINT
	CONTAINS
	CREATE
	CSV
	DATABASE
	DELETE
	DENY
	DESC
	DESCENDING
	DETACH
	DISTINCT
	DROP
	ELSE
	END
	ENDS
	EXISTS
	FALSE
	FIELDTERMINATOR
	FOREACH
	FROM
	GRANT
	HEADERS
	IN
	INDEX
	IS
	LIMIT
	LOAD
	MATCH
	MERGE
	NONE
	NOT
	NULL
	OF
	OFFSET
	ON
	OPTIONAL
	OR
	ORDER
	REMOVE
	RETURN
	REVOKE
	SET
	SHOW
	SINGLE
	SKIP
	START
	STARTS
	STOP
	TERMINATE
	THEN
	TRUE
	UNION
	UNWIND
	USE
	WHEN
	WHERE
	WITH
	XOR
	YIELD
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	NUMBER: "NUMBER",
	STRING: "STRING",
	PARAM:  "PARAM",

	PLUS:     "+",
	PLUSEQ:   "+=",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	PERCENT:  "%",
	CARET:    "^",
	EQ:       "=",
	NE:       "<>",
	LT:       "<",
	GT:       ">",
	LE:       "<=",
	GE:       ">=",
	REGEX:    "=~",
	DOT:      ".",
	DOTDOT:   "..",
	COMMA:    ",",
	COLON:    ":",
	SEMI:     ";",
	PIPE:     "|",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACKET: "[",
	RBRACKET: "]",
	LBRACE:   "{",
	RBRACE:   "}",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"all":             ALL,
	"alter":           ALTER,
	"and":             AND,
	"any":             ANY,
	"as":              AS,
	"asc":             ASC,
	"ascending":       ASCENDING,
	"by":              BY,
	"call":            CALL,
	"case":            CASE,
	"constraint":      CONSTRAINT,
	"contains":        CONTAINS,
	"create":          CREATE,
	"csv":             CSV,
	"database":        DATABASE,
	"delete":          DELETE,
	"deny":            DENY,
	"desc":            DESC,
	"descending":      DESCENDING,
	"detach":          DETACH,
	"distinct":        DISTINCT,
	"drop":            DROP,
	"else":            ELSE,
	"end":             END,
	"ends":            ENDS,
	"exists":          EXISTS,
	"false":           FALSE,
	"fieldterminator": FIELDTERMINATOR,
	"foreach":         FOREACH,
	"from":            FROM,
	"grant":           GRANT,
	"headers":         HEADERS,
	"in":              IN,
	"index":           INDEX,
	"is":              IS,
	"limit":           LIMIT,
	"load":            LOAD,
	"match":           MATCH,
	"merge":           MERGE,
	"none":            NONE,
	"not":             NOT,
	"null":            NULL,
	"of":              OF,
	"offset":          OFFSET,
	"on":              ON,
	"optional":        OPTIONAL,
	"or":              OR,
	"order":           ORDER,
	"remove":          REMOVE,
	"return":          RETURN,
	"revoke":          REVOKE,
	"set":             SET,
	"show":            SHOW,
	"single":          SINGLE,
	"skip":            SKIP,
	"start":           START,
	"starts":          STARTS,
	"stop":            STOP,
	"terminate":       TERMINATE,
	"then":            THEN,
	"true":            TRUE,
	"union":           UNION,
	"unwind":          UNWIND,
	"use":             USE,
	"when":            WHEN,
	"where":           WHERE,
	"with":            WITH,
	"xor":             XOR,
	"yield":           YIELD,
}

func init() {
	for word, t := range keywords {
		tokenNames[t] = strings.ToUpper(word)
	}
}

// reserved keywords cannot be used as bare variable names.
var reserved = map[TokenType]bool{
	AND: true, AS: true, CALL: true, CASE: true, CONTAINS: true, CREATE: true,
	DELETE: true, DETACH: true, DISTINCT: true, ELSE: true, END: true, ENDS: true,
	FALSE: true, FOREACH: true, IN: true, IS: true, LIMIT: true, LOAD: true,
	MATCH: true, MERGE: true, NOT: true, NULL: true, OPTIONAL: true, OR: true,
	ORDER: true, REMOVE: true, RETURN: true, SET: true, SKIP: true, STARTS: true,
	THEN: true, TRUE: true, UNION: true, UNWIND: true, WHEN: true, WHERE: true,
	WITH: true, XOR: true, YIELD: true,
}

// LookupIdent returns the token type for the given identifier, matching
// keywords case-insensitively. Non-keywords return IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= ALL && t <= YIELD
}

// IsReserved returns true if the keyword cannot be used as a variable name.
func IsReserved(t TokenType) bool {
	return reserved[t]
}

// IsOperator returns true if the token type is an operator or delimiter.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= RBRACE
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
	// Quoted is set for backtick-quoted names, which are never keywords.
	Quoted bool
}

// IsName returns true if the token can be used as a symbolic name
// (label, relationship type, property key, map key or function name).
func (t Token) IsName() bool {
	return t.Type == IDENT || IsKeyword(t.Type)
}
