// Package cypher provides a Cypher lexer, parser and AST.
//
// # Usage
//
//	stmt, err := cypher.Parse(`MATCH (m:Movie {name: "Top Gun"}) RETURN m.runtime`)
//	if err != nil {
//	    // *ParseError with position information
//	}
//
// # Grammar Overview
//
// The parser implements a recursive descent parser for the openCypher
// grammar as accepted by Neo4j 5 and Memgraph:
//
//	statement    → [USE name] (query | admin_command | show_command) [';']
//	query        → single_query (UNION [ALL] single_query)*
//	single_query → clause+
//	clause       → reading_clause | projecting_clause | updating_clause
//	               | CALL procedure | CALL { query } | LOAD CSV ...
//
// Schema and administration commands (CREATE INDEX, DROP ..., GRANT ...)
// are recognised but not parsed further; they become an AdminStatement.
//
// See each file for detailed grammar rules for that section.
package cypher

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/graphask/pkg/token"
)

// Parser parses Cypher into an AST.
type Parser struct {
	input  string
	toks   []token.Token
	idx    int
	token  token.Token // current token
	peek   token.Token // lookahead token
	peek2  token.Token // second lookahead token
	errors []error
}

// NewParser creates a new parser for the given Cypher input.
func NewParser(input string) *Parser {
	p := &Parser{
		input: input,
		toks:  Tokenize(input),
	}
	p.sync()
	return p
}

// Parse parses a single Cypher statement. Trailing semicolons are allowed;
// a second statement is an error.
func Parse(input string) (Statement, error) {
	p := NewParser(input)
	stmt := p.parseStatement()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return stmt, nil
}

// Errors returns all errors collected during parsing.
func (p *Parser) Errors() []error {
	return p.errors
}

// ---------- Token Helpers ----------

func (p *Parser) at(i int) token.Token {
	if i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) sync() {
	p.token = p.at(p.idx)
	p.peek = p.at(p.idx + 1)
	p.peek2 = p.at(p.idx + 2)
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	if p.idx < len(p.toks)-1 {
		p.idx++
	}
	p.sync()
}

// mark returns a restore point for speculative parsing.
func (p *Parser) mark() (int, int) {
	return p.idx, len(p.errors)
}

// reset rewinds to a restore point, discarding errors added since.
func (p *Parser) reset(idx, nerr int) {
	p.idx = idx
	p.errors = p.errors[:nerr]
	p.sync()
}

func (p *Parser) check(t token.TokenType) bool {
	return p.token.Type == t
}

func (p *Parser) checkPeek(t token.TokenType) bool {
	return p.peek.Type == t
}

func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), t))
	return false
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{
		Pos:     p.token.Pos,
		Message: msg,
		Near:    p.token.Literal,
	})
}

func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// checkWord reports whether the current token is the unquoted soft keyword w.
func (p *Parser) checkWord(w string) bool {
	return p.token.Type == token.IDENT && !p.token.Quoted && strings.EqualFold(p.token.Literal, w)
}

// expectName consumes a symbolic name (any identifier or keyword).
func (p *Parser) expectName(what string) string {
	if p.token.IsName() {
		name := p.token.Literal
		p.nextToken()
		return name
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), what))
	return ""
}

// isVariableToken reports whether tok can be a variable name.
func isVariableToken(tok token.Token) bool {
	if tok.Type == token.IDENT {
		return true
	}
	return token.IsKeyword(tok.Type) && !token.IsReserved(tok.Type)
}

func (p *Parser) expectVariable() string {
	if isVariableToken(p.token) {
		name := p.token.Literal
		p.nextToken()
		return name
	}
	p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "variable"))
	return ""
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.EOF:
		return "end of input"
	case token.ILLEGAL:
		return fmt.Sprintf("%q", tok.Literal)
	case token.IDENT, token.NUMBER, token.STRING, token.PARAM:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	}
	return tok.Type.String()
}

// ---------- Statements ----------

func (p *Parser) parseStatement() Statement {
	if p.check(token.EOF) || p.check(token.SEMI) {
		p.addError(ErrEmptyQuery)
		return nil
	}
	if p.check(token.ILLEGAL) {
		p.addError(p.token.Literal)
		return nil
	}

	var stmt Statement
	switch {
	case p.isAdminStart():
		stmt = p.parseAdmin()
	case p.check(token.SHOW):
		stmt = p.parseShow()
	default:
		stmt = p.parseQuery(true)
	}
	if p.failed() {
		return nil
	}

	if p.match(token.SEMI) {
		for p.match(token.SEMI) {
		}
		if !p.check(token.EOF) {
			p.addError(ErrMultipleStatements)
			return nil
		}
	}
	if !p.check(token.EOF) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "end of input"))
		return nil
	}
	return stmt
}

var adminCreateWords = map[string]bool{
	"range": true, "text": true, "point": true, "fulltext": true, "lookup": true,
	"vector": true, "btree": true, "user": true, "role": true, "alias": true,
	"composite": true, "privilege": true, "trigger": true,
}

func (p *Parser) isAdminStart() bool {
	switch p.token.Type {
	case token.DROP, token.ALTER, token.GRANT, token.DENY, token.REVOKE,
		token.START, token.STOP, token.TERMINATE:
		return true
	case token.CREATE:
		switch p.peek.Type {
		case token.INDEX, token.CONSTRAINT, token.DATABASE, token.OR:
			return true
		case token.IDENT:
			return !p.peek.Quoted && adminCreateWords[strings.ToLower(p.peek.Literal)] &&
				p.peek2.Type != token.EQ
		}
	}
	return false
}

// skipToStatementEnd consumes tokens up to a top-level ';' or EOF and
// returns the raw source text covered.
func (p *Parser) skipToStatementEnd(start token.Position) string {
	depth := 0
	for !p.check(token.EOF) {
		switch p.token.Type {
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			depth--
		case token.SEMI:
			if depth <= 0 {
				return strings.TrimSpace(p.input[start.Offset:p.token.Pos.Offset])
			}
		case token.ILLEGAL:
			p.addError(p.token.Literal)
			return ""
		}
		p.nextToken()
	}
	return strings.TrimSpace(p.input[start.Offset:])
}

func (p *Parser) parseAdmin() *AdminStatement {
	stmt := &AdminStatement{Pos: p.token.Pos}
	words := []string{strings.ToUpper(p.token.Literal)}
	if p.peek.IsName() && !p.peek.Quoted {
		words = append(words, strings.ToUpper(p.peek.Literal))
	}
	stmt.Command = strings.Join(words, " ")
	stmt.Text = p.skipToStatementEnd(stmt.Pos)
	return stmt
}

func (p *Parser) parseShow() *ShowStatement {
	stmt := &ShowStatement{Pos: p.token.Pos}
	if p.peek.IsName() {
		stmt.What = strings.ToUpper(p.peek.Literal)
	}
	stmt.Text = p.skipToStatementEnd(stmt.Pos)
	return stmt
}

// parseQuery parses single queries joined by UNION. When requireEnd is set
// each part must end in RETURN or an updating clause.
func (p *Parser) parseQuery(requireEnd bool) *Query {
	q := &Query{Pos: p.token.Pos}

	first := p.parseSingleQuery(requireEnd)
	if first == nil {
		return nil
	}
	q.Parts = append(q.Parts, first)

	sawUnion := false
	for p.check(token.UNION) {
		p.nextToken()
		all := p.match(token.ALL)
		if sawUnion && all != q.UnionAll {
			p.addError(ErrUnionMixed)
			return nil
		}
		sawUnion = true
		q.UnionAll = all

		part := p.parseSingleQuery(requireEnd)
		if part == nil {
			return nil
		}
		q.Parts = append(q.Parts, part)
	}

	if sawUnion {
		for _, part := range q.Parts {
			if _, ok := part.Clauses[len(part.Clauses)-1].(*ReturnClause); !ok {
				p.errors = append(p.errors, &ParseError{Pos: part.Pos, Message: "all parts of a UNION must end with RETURN"})
				return nil
			}
		}
	}
	return q
}

func (p *Parser) isClauseStart() bool {
	switch p.token.Type {
	case token.MATCH, token.UNWIND, token.WITH, token.RETURN, token.CREATE,
		token.MERGE, token.SET, token.REMOVE, token.DELETE, token.DETACH,
		token.FOREACH, token.CALL, token.LOAD, token.USE:
		return true
	case token.OPTIONAL:
		return p.checkPeek(token.MATCH)
	}
	return false
}

func (p *Parser) parseSingleQuery(requireEnd bool) *SingleQuery {
	sq := &SingleQuery{Pos: p.token.Pos}

	for !p.check(token.EOF) && !p.check(token.SEMI) && !p.check(token.UNION) && !p.check(token.RBRACE) {
		if !p.isClauseStart() {
			switch {
			case p.check(token.WHERE):
				p.addError(ErrWhereMisplaced)
			case p.check(token.ILLEGAL):
				p.addError(p.token.Literal)
			case len(sq.Clauses) == 0:
				p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "clause"))
			default:
				p.addError(fmt.Sprintf(ErrUnknownClause, describe(p.token)))
			}
			return nil
		}

		c := p.parseClause()
		if c == nil || p.failed() {
			return nil
		}
		if len(sq.Clauses) > 0 {
			if _, ok := sq.Clauses[len(sq.Clauses)-1].(*ReturnClause); ok {
				p.errors = append(p.errors, &ParseError{Pos: c.Position(), Message: ErrReturnNotLast})
				return nil
			}
		}
		sq.Clauses = append(sq.Clauses, c)
	}

	if len(sq.Clauses) == 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "clause"))
		return nil
	}
	if requireEnd && !endsQuery(sq.Clauses[len(sq.Clauses)-1]) {
		p.addError(ErrMissingReturn)
		return nil
	}
	return sq
}

// endsQuery reports whether c may be the last clause of a query part.
func endsQuery(c Clause) bool {
	switch c.(type) {
	case *ReturnClause, *CallClause, *SubqueryClause:
		return true
	}
	return IsUpdating(c)
}
