package cypher

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/graphask/pkg/token"
)

// Expression parsing uses a Pratt parser.
//
// Precedence levels:
//
//	precOr         = 1  OR
//	precXor        = 2  XOR
//	precAnd        = 3  AND
//	precNot        = 4  NOT (prefix)
//	precComparison = 5  =, <>, <, >, <=, >=, =~
//	precPredicate  = 6  IN, STARTS WITH, ENDS WITH, CONTAINS, IS [NOT] NULL
//	precAddition   = 7  +, -
//	precMultiply   = 8  *, /, %
//	precPower      = 9  ^
//	precUnary      = 10 -, + (prefix)
//	precPostfix    = 11 .key, [i], [a..b], :Label
const (
	precNone = iota
	precOr
	precXor
	precAnd
	precNot
	precComparison
	precPredicate
	precAddition
	precMultiply
	precPower
	precUnary
	precPostfix
)

func lower(s string) string {
	return strings.ToLower(s)
}

func (p *Parser) parseExpression() Expr {
	return p.parseExpressionWithPrecedence(precNone + 1)
}

func (p *Parser) parseExpressionList() []Expr {
	var exprs []Expr
	for {
		e := p.parseExpression()
		if p.failed() {
			return nil
		}
		exprs = append(exprs, e)
		if !p.match(token.COMMA) {
			return exprs
		}
	}
}

func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) Expr {
	left := p.parsePrefixExpr()
	if left == nil || p.failed() {
		return nil
	}

	for {
		prec := p.infixPrecedence()
		if prec == precNone || prec < minPrecedence {
			break
		}
		left = p.parseInfixExpr(left, prec)
		if left == nil || p.failed() {
			return nil
		}
	}
	return left
}

func (p *Parser) parsePrefixExpr() Expr {
	pos := p.token.Pos
	switch p.token.Type {
	case token.NOT:
		p.nextToken()
		e := p.parseExpressionWithPrecedence(precNot)
		return &UnaryExpr{Pos: pos, Op: "NOT", Expr: e}
	case token.MINUS:
		p.nextToken()
		e := p.parseExpressionWithPrecedence(precUnary)
		return &UnaryExpr{Pos: pos, Op: "-", Expr: e}
	case token.PLUS:
		p.nextToken()
		e := p.parseExpressionWithPrecedence(precUnary)
		return &UnaryExpr{Pos: pos, Op: "+", Expr: e}
	}
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case token.OR:
		return precOr
	case token.XOR:
		return precXor
	case token.AND:
		return precAnd
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE, token.REGEX:
		return precComparison
	case token.IN, token.CONTAINS, token.IS:
		return precPredicate
	case token.STARTS, token.ENDS:
		if p.checkPeek(token.WITH) {
			return precPredicate
		}
	case token.PLUS, token.MINUS:
		return precAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return precMultiply
	case token.CARET:
		return precPower
	}
	return precNone
}

func (p *Parser) parseInfixExpr(left Expr, prec int) Expr {
	pos := p.token.Pos
	tok := p.token

	switch tok.Type {
	case token.IS:
		p.nextToken()
		not := p.match(token.NOT)
		if !p.expect(token.NULL) {
			return nil
		}
		return &IsNullExpr{Pos: pos, Expr: left, Not: not}
	case token.STARTS, token.ENDS:
		p.nextToken()
		p.nextToken() // WITH
		right := p.parseExpressionWithPrecedence(prec + 1)
		return &BinaryExpr{Pos: pos, Op: strings.ToUpper(tok.Literal) + " WITH", Left: left, Right: right}
	}

	p.nextToken()
	op := tok.Type.String()
	if tok.Type == token.NE {
		op = "<>"
	}
	right := p.parseExpressionWithPrecedence(prec + 1)
	if right == nil {
		return nil
	}
	return &BinaryExpr{Pos: pos, Op: op, Left: left, Right: right}
}

// parsePostfix applies property access, indexing, slicing and label
// predicates to an atom.
func (p *Parser) parsePostfix(e Expr) Expr {
	for e != nil && !p.failed() {
		pos := p.token.Pos
		switch p.token.Type {
		case token.DOT:
			p.nextToken()
			key := p.expectName("property key")
			if key == "" {
				return nil
			}
			e = &PropertyAccess{Pos: pos, Expr: e, Key: key}
		case token.LBRACKET:
			p.nextToken()
			e = p.parseIndexOrSlice(pos, e)
		case token.COLON:
			labels := p.parseLabelExpr(false)
			if labels == nil {
				return nil
			}
			e = &LabelPredicate{Pos: pos, Expr: e, Labels: labels}
		default:
			return e
		}
	}
	return e
}

func (p *Parser) parseIndexOrSlice(pos token.Position, target Expr) Expr {
	if p.match(token.DOTDOT) {
		s := &SliceExpr{Pos: pos, Expr: target}
		if !p.check(token.RBRACKET) {
			s.To = p.parseExpression()
		}
		if !p.expect(token.RBRACKET) {
			return nil
		}
		return s
	}

	first := p.parseExpression()
	if p.failed() {
		return nil
	}
	if p.match(token.DOTDOT) {
		s := &SliceExpr{Pos: pos, Expr: target, From: first}
		if !p.check(token.RBRACKET) {
			s.To = p.parseExpression()
		}
		if !p.expect(token.RBRACKET) {
			return nil
		}
		return s
	}
	if !p.expect(token.RBRACKET) {
		return nil
	}
	return &IndexExpr{Pos: pos, Expr: target, Index: first}
}

func (p *Parser) parsePrimary() Expr {
	pos := p.token.Pos
	tok := p.token

	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		kind := LitInteger
		if !strings.HasPrefix(lower(tok.Literal), "0x") && strings.ContainsAny(tok.Literal, ".eE") {
			kind = LitFloat
		}
		return &Literal{Pos: pos, Kind: kind, Value: tok.Literal}
	case token.STRING:
		p.nextToken()
		return &Literal{Pos: pos, Kind: LitString, Value: tok.Literal}
	case token.TRUE, token.FALSE:
		p.nextToken()
		return &Literal{Pos: pos, Kind: LitBool, Value: lower(tok.Literal)}
	case token.NULL:
		p.nextToken()
		return &Literal{Pos: pos, Kind: LitNull, Value: "null"}
	case token.PARAM:
		p.nextToken()
		return &Parameter{Pos: pos, Name: tok.Literal}
	case token.LBRACE:
		return p.parseMapLiteral()
	case token.LBRACKET:
		return p.parseListOrComprehension()
	case token.LPAREN:
		return p.parseParenOrPattern()
	case token.CASE:
		return p.parseCase()
	case token.EXISTS:
		if p.checkPeek(token.LBRACE) {
			p.nextToken()
			return p.parseSubqueryExpr(pos, "EXISTS")
		}
	case token.ALL, token.ANY, token.NONE, token.SINGLE:
		if p.checkPeek(token.LPAREN) && isVariableToken(p.peek2) && p.at(p.idx+3).Type == token.IN {
			return p.parseQuantifier()
		}
	case token.ILLEGAL:
		p.addError(tok.Literal)
		return nil
	}

	if !tok.IsName() {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(tok), "expression"))
		return nil
	}

	// COUNT { ... } and COLLECT { ... } subqueries
	if tok.Type == token.IDENT && !tok.Quoted && p.checkPeek(token.LBRACE) {
		switch lower(tok.Literal) {
		case "count", "collect":
			p.nextToken()
			return p.parseSubqueryExpr(pos, strings.ToUpper(tok.Literal))
		}
	}

	if p.isFunctionCall() {
		return p.parseFunctionCall()
	}

	if !isVariableToken(tok) {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(tok), "expression"))
		return nil
	}
	p.nextToken()
	v := &Variable{Pos: pos, Name: tok.Literal}

	if p.check(token.LBRACE) {
		return p.parseMapProjection(v)
	}
	return v
}

// isFunctionCall looks ahead for name ('.' name)* '('.
func (p *Parser) isFunctionCall() bool {
	i := p.idx
	for {
		if !p.at(i).IsName() {
			return false
		}
		next := p.at(i + 1)
		switch next.Type {
		case token.LPAREN:
			return true
		case token.DOT:
			i += 2
		default:
			return false
		}
	}
}

func (p *Parser) parseFunctionCall() Expr {
	fn := &FuncCall{Pos: p.token.Pos}
	parts := []string{p.token.Literal}
	p.nextToken()
	for p.match(token.DOT) {
		parts = append(parts, p.token.Literal)
		p.nextToken()
	}
	fn.Name = strings.Join(parts, ".")

	if !p.expect(token.LPAREN) {
		return nil
	}
	if p.check(token.STAR) && p.checkPeek(token.RPAREN) {
		p.nextToken()
		p.nextToken()
		fn.Star = true
		return fn
	}
	fn.Distinct = p.match(token.DISTINCT)
	if !p.check(token.RPAREN) {
		fn.Args = p.parseExpressionList()
		if p.failed() {
			return nil
		}
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	return fn
}

func (p *Parser) parseMapLiteral() *MapLiteral {
	m := &MapLiteral{Pos: p.token.Pos}
	if !p.expect(token.LBRACE) {
		return nil
	}
	for !p.check(token.RBRACE) {
		key := p.expectMapKey()
		if key == "" || !p.expect(token.COLON) {
			return nil
		}
		v := p.parseExpression()
		if p.failed() {
			return nil
		}
		m.Keys = append(m.Keys, key)
		m.Values = append(m.Values, v)
		if !p.match(token.COMMA) {
			break
		}
	}
	if !p.expect(token.RBRACE) {
		return nil
	}
	return m
}

func (p *Parser) expectMapKey() string {
	if p.check(token.STRING) {
		key := p.token.Literal
		p.nextToken()
		return key
	}
	return p.expectName("map key")
}

func (p *Parser) parseMapProjection(v *Variable) Expr {
	mp := &MapProjection{Pos: v.Pos, Variable: v.Name}
	p.nextToken() // '{'
	for !p.check(token.RBRACE) {
		item := &MapProjectionItem{}
		switch {
		case p.match(token.DOT):
			if p.match(token.STAR) {
				item.AllProperties = true
			} else {
				item.Property = p.expectName("property key")
			}
		case p.token.IsName() && p.checkPeek(token.COLON):
			item.Key = p.token.Literal
			p.nextToken()
			p.nextToken()
			item.Value = p.parseExpression()
		default:
			item.Variable = p.expectVariable()
		}
		if p.failed() {
			return nil
		}
		mp.Items = append(mp.Items, item)
		if !p.match(token.COMMA) {
			break
		}
	}
	if !p.expect(token.RBRACE) {
		return nil
	}
	return mp
}

func (p *Parser) parseListOrComprehension() Expr {
	pos := p.token.Pos
	p.nextToken() // '['

	// [x IN list WHERE pred | expr]
	if isVariableToken(p.token) && p.checkPeek(token.IN) {
		lc := &ListComprehension{Pos: pos, Variable: p.token.Literal}
		p.nextToken()
		p.nextToken()
		lc.List = p.parseExpression()
		if p.failed() {
			return nil
		}
		if p.match(token.WHERE) {
			lc.Where = p.parseExpression()
		}
		if p.match(token.PIPE) {
			lc.Map = p.parseExpression()
		}
		if p.failed() || !p.expect(token.RBRACKET) {
			return nil
		}
		return lc
	}

	// [p = (a)-->(b) WHERE pred | expr] or [(a)-->(b) | expr]
	if pc := p.tryPatternComprehension(pos); pc != nil {
		return pc
	}
	if p.failed() {
		return nil
	}

	list := &ListLiteral{Pos: pos}
	if !p.check(token.RBRACKET) {
		list.Items = p.parseExpressionList()
		if p.failed() {
			return nil
		}
	}
	if !p.expect(token.RBRACKET) {
		return nil
	}
	return list
}

func (p *Parser) tryPatternComprehension(pos token.Position) Expr {
	var pathVar string
	startIdx, startErr := p.mark()

	if isVariableToken(p.token) && p.checkPeek(token.EQ) {
		pathVar = p.token.Literal
		p.nextToken()
		p.nextToken()
	}
	if !p.check(token.LPAREN) {
		p.reset(startIdx, startErr)
		return nil
	}

	el := p.parsePatternElement()
	if p.failed() || el == nil || len(el.Rels) == 0 || (!p.check(token.WHERE) && !p.check(token.PIPE)) {
		p.reset(startIdx, startErr)
		return nil
	}

	pc := &PatternComprehension{Pos: pos, Variable: pathVar, Pattern: el}
	if p.match(token.WHERE) {
		pc.Where = p.parseExpression()
	}
	if p.failed() || !p.expect(token.PIPE) {
		return nil
	}
	pc.Map = p.parseExpression()
	if p.failed() || !p.expect(token.RBRACKET) {
		return nil
	}
	return pc
}

// parseParenOrPattern disambiguates '(' between a parenthesised expression
// and a relationship pattern used as a predicate.
func (p *Parser) parseParenOrPattern() Expr {
	pos := p.token.Pos
	startIdx, startErr := p.mark()

	el := p.parsePatternElement()
	if !p.failed() && el != nil && len(el.Rels) > 0 {
		return &PatternExpr{Pos: pos, Pattern: el}
	}
	p.reset(startIdx, startErr)

	p.nextToken() // '('
	e := p.parseExpression()
	if p.failed() || !p.expect(token.RPAREN) {
		return nil
	}
	return e
}

func (p *Parser) parseCase() Expr {
	c := &CaseExpr{Pos: p.token.Pos}
	p.nextToken()

	if !p.check(token.WHEN) {
		c.Operand = p.parseExpression()
		if p.failed() {
			return nil
		}
	}
	for p.match(token.WHEN) {
		w := &WhenClause{Cond: p.parseExpression()}
		if p.failed() || !p.expect(token.THEN) {
			return nil
		}
		w.Result = p.parseExpression()
		if p.failed() {
			return nil
		}
		c.Whens = append(c.Whens, w)
	}
	if len(c.Whens) == 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "WHEN"))
		return nil
	}
	if p.match(token.ELSE) {
		c.Else = p.parseExpression()
	}
	if p.failed() || !p.expect(token.END) {
		return nil
	}
	return c
}

func (p *Parser) parseQuantifier() Expr {
	q := &QuantifierExpr{Pos: p.token.Pos, Kind: strings.ToUpper(p.token.Literal)}
	p.nextToken() // kind
	p.nextToken() // '('
	q.Variable = p.token.Literal
	p.nextToken()
	p.nextToken() // IN
	q.List = p.parseExpression()
	if p.failed() {
		return nil
	}
	if p.match(token.WHERE) {
		q.Where = p.parseExpression()
	}
	if p.failed() || !p.expect(token.RPAREN) {
		return nil
	}
	return q
}

// parseSubqueryExpr parses the braces of EXISTS, COUNT or COLLECT. The body
// is either a full query or a pattern with an optional WHERE.
func (p *Parser) parseSubqueryExpr(pos token.Position, kind string) Expr {
	sub := &SubqueryExpr{Pos: pos, Kind: kind}
	if !p.expect(token.LBRACE) {
		return nil
	}
	if p.isClauseStart() {
		sub.Query = p.parseQuery(false)
	} else {
		sub.Pattern = p.parsePattern()
		if !p.failed() && p.match(token.WHERE) {
			sub.Where = p.parseExpression()
		}
	}
	if p.failed() || !p.expect(token.RBRACE) {
		return nil
	}
	return sub
}
