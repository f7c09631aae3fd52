package cypher

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/graphask/pkg/token"
)

// Pattern grammar:
//
//	pattern      → pattern_part (',' pattern_part)*
//	pattern_part → [name '='] (path_fn '(' element ')' | element)
//	element      → node (rel node)*
//	node         → '(' [name] [label_expr] [map | param] ')'
//	rel          → ['<'] '-' ['[' [name] [':' type ('|' [':'] type)*] [range] [map | param] ']'] '-' ['>']
//	range        → '*' [int] ['..' [int]]

var pathFunctions = map[string]bool{
	"shortestpath":     true,
	"allshortestpaths": true,
}

func (p *Parser) parsePattern() []*PatternPart {
	var parts []*PatternPart
	for {
		part := p.parsePatternPart()
		if p.failed() {
			return nil
		}
		parts = append(parts, part)
		if !p.match(token.COMMA) {
			return parts
		}
	}
}

func (p *Parser) parsePatternPart() *PatternPart {
	part := &PatternPart{Pos: p.token.Pos}

	if isVariableToken(p.token) && p.checkPeek(token.EQ) {
		part.Variable = p.token.Literal
		p.nextToken()
		p.nextToken()
	}

	if p.token.Type == token.IDENT && p.checkPeek(token.LPAREN) && pathFunctions[lower(p.token.Literal)] {
		part.Function = p.token.Literal
		p.nextToken()
		p.nextToken()
		part.Element = p.parsePatternElement()
		if p.failed() || !p.expect(token.RPAREN) {
			return nil
		}
		return part
	}

	part.Element = p.parsePatternElement()
	if p.failed() {
		return nil
	}
	return part
}

func (p *Parser) parsePatternElement() *PatternElement {
	el := &PatternElement{}

	node := p.parseNodePattern()
	if node == nil {
		return nil
	}
	el.Nodes = append(el.Nodes, node)

	for p.isRelStart() {
		rel := p.parseRelPattern()
		if rel == nil {
			return nil
		}
		node := p.parseNodePattern()
		if node == nil {
			return nil
		}
		el.Rels = append(el.Rels, rel)
		el.Nodes = append(el.Nodes, node)
	}
	return el
}

// isRelStart reports whether the current tokens begin a relationship pattern.
func (p *Parser) isRelStart() bool {
	if p.check(token.LT) && p.checkPeek(token.MINUS) {
		return true
	}
	if p.check(token.MINUS) {
		switch p.peek.Type {
		case token.MINUS, token.LBRACKET, token.GT:
			return true
		}
	}
	return false
}

func (p *Parser) parseNodePattern() *NodePattern {
	node := &NodePattern{Pos: p.token.Pos}
	if !p.expect(token.LPAREN) {
		return nil
	}

	if isVariableToken(p.token) {
		node.Variable = p.token.Literal
		p.nextToken()
	}

	if p.check(token.COLON) {
		node.Labels = p.parseLabelExpr(true)
		if p.failed() {
			return nil
		}
	}

	if p.check(token.LBRACE) || p.check(token.PARAM) {
		node.Properties = p.parsePropertiesExpr()
		if p.failed() {
			return nil
		}
	}

	if !p.expect(token.RPAREN) {
		return nil
	}
	return node
}

// parseLabelExpr parses ':' name followed by further ':' name, '|' name or
// '&' name. Label expressions are flattened to the list of names used.
// Alternatives are only accepted inside node patterns, where '|' cannot
// start anything else.
func (p *Parser) parseLabelExpr(alternatives bool) []string {
	var labels []string
	for p.check(token.COLON) || (alternatives && (p.check(token.PIPE) || (p.check(token.ILLEGAL) && p.token.Literal == "&"))) {
		p.nextToken()
		name := p.expectName("label")
		if name == "" {
			return nil
		}
		labels = append(labels, name)
	}
	return labels
}

func (p *Parser) parsePropertiesExpr() Expr {
	if p.check(token.PARAM) {
		e := &Parameter{Pos: p.token.Pos, Name: p.token.Literal}
		p.nextToken()
		return e
	}
	return p.parseMapLiteral()
}

func (p *Parser) parseRelPattern() *RelPattern {
	rel := &RelPattern{Pos: p.token.Pos, Direction: DirBoth}

	left := false
	if p.match(token.LT) {
		left = true
	}
	if !p.expect(token.MINUS) {
		return nil
	}

	if p.match(token.LBRACKET) {
		if isVariableToken(p.token) {
			rel.Variable = p.token.Literal
			p.nextToken()
		}
		if p.match(token.COLON) {
			for {
				name := p.expectName("relationship type")
				if name == "" {
					return nil
				}
				rel.Types = append(rel.Types, name)
				if !p.match(token.PIPE) {
					break
				}
				p.match(token.COLON)
			}
		}
		if p.check(token.STAR) {
			rel.Length = p.parseRange()
			if p.failed() {
				return nil
			}
		}
		if p.check(token.LBRACE) || p.check(token.PARAM) {
			rel.Properties = p.parsePropertiesExpr()
			if p.failed() {
				return nil
			}
		}
		if !p.expect(token.RBRACKET) {
			return nil
		}
	}

	if !p.expect(token.MINUS) {
		return nil
	}
	right := p.match(token.GT)

	switch {
	case left && !right:
		rel.Direction = DirLeft
	case right && !left:
		rel.Direction = DirRight
	}
	return rel
}

func (p *Parser) parseRange() *RangeLiteral {
	p.nextToken() // '*'
	r := &RangeLiteral{}

	if p.check(token.NUMBER) {
		n, ok := p.parseRangeBound()
		if !ok {
			return nil
		}
		r.Min = &n
		if !p.check(token.DOTDOT) {
			// *n means exactly n hops
			m := n
			r.Max = &m
			return r
		}
	}
	if p.match(token.DOTDOT) {
		if p.check(token.NUMBER) {
			n, ok := p.parseRangeBound()
			if !ok {
				return nil
			}
			r.Max = &n
		}
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		p.addError(ErrInvalidRange)
		return nil
	}
	return r
}

func (p *Parser) parseRangeBound() (int64, bool) {
	n, err := strconv.ParseInt(p.token.Literal, 10, 64)
	if err != nil || n < 0 {
		p.addError(fmt.Sprintf("%s: %s", ErrInvalidRange, p.token.Literal))
		return 0, false
	}
	p.nextToken()
	return n, true
}
