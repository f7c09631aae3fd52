package cypher

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/graphask/pkg/token"
)

// Clause grammar:
//
//	match     → [OPTIONAL] MATCH pattern [WHERE expr]
//	unwind    → UNWIND expr AS name
//	with      → WITH projection [WHERE expr]
//	return    → RETURN projection
//	create    → CREATE pattern
//	merge     → MERGE pattern_part (ON (CREATE|MATCH) SET set_items)*
//	set       → SET set_item (',' set_item)*
//	remove    → REMOVE remove_item (',' remove_item)*
//	delete    → [DETACH] DELETE expr (',' expr)*
//	foreach   → FOREACH '(' name IN expr '|' updating_clause+ ')'
//	call      → CALL name ('.' name)* ['(' args ')'] [YIELD (* | items [WHERE expr])]
//	subquery  → CALL ['(' vars ')'] '{' query '}' [IN TRANSACTIONS ...]
//	load_csv  → LOAD CSV [WITH HEADERS] FROM expr AS name [FIELDTERMINATOR string]
//	use       → USE name ('.' name)*

func (p *Parser) parseClause() Clause {
	switch p.token.Type {
	case token.OPTIONAL, token.MATCH:
		return p.parseMatch()
	case token.UNWIND:
		return p.parseUnwind()
	case token.WITH:
		return p.parseWith()
	case token.RETURN:
		return p.parseReturn()
	case token.CREATE:
		return p.parseCreate()
	case token.MERGE:
		return p.parseMerge()
	case token.SET:
		return p.parseSet()
	case token.REMOVE:
		return p.parseRemove()
	case token.DELETE, token.DETACH:
		return p.parseDelete()
	case token.FOREACH:
		return p.parseForeach()
	case token.CALL:
		return p.parseCall()
	case token.LOAD:
		return p.parseLoadCSV()
	case token.USE:
		return p.parseUse()
	}
	p.addError(fmt.Sprintf(ErrUnknownClause, describe(p.token)))
	return nil
}

func (p *Parser) parseMatch() Clause {
	c := &MatchClause{Pos: p.token.Pos}
	if p.match(token.OPTIONAL) {
		c.Optional = true
	}
	if !p.expect(token.MATCH) {
		return nil
	}
	c.Pattern = p.parsePattern()
	if p.failed() {
		return nil
	}
	if p.match(token.WHERE) {
		c.Where = p.parseExpression()
	}
	return c
}

func (p *Parser) parseUnwind() Clause {
	c := &UnwindClause{Pos: p.token.Pos}
	p.nextToken()
	c.Expr = p.parseExpression()
	if p.failed() || !p.expect(token.AS) {
		return nil
	}
	c.Alias = p.expectVariable()
	return c
}

func (p *Parser) parseWith() Clause {
	c := &WithClause{Pos: p.token.Pos}
	p.nextToken()
	c.Projection = p.parseProjection(true)
	if p.failed() {
		return nil
	}
	if p.match(token.WHERE) {
		c.Where = p.parseExpression()
	}
	return c
}

func (p *Parser) parseReturn() Clause {
	c := &ReturnClause{Pos: p.token.Pos}
	p.nextToken()
	c.Projection = p.parseProjection(false)
	return c
}

// parseProjection parses the body of WITH or RETURN. WITH requires an alias
// on every item that is not a bare variable.
func (p *Parser) parseProjection(isWith bool) *Projection {
	proj := &Projection{}
	proj.Distinct = p.match(token.DISTINCT)

	if p.match(token.STAR) {
		proj.Star = true
		if !p.match(token.COMMA) {
			p.parseProjectionTail(proj)
			return proj
		}
	}

	for {
		itemPos := p.token.Pos
		item := &ProjectionItem{Expr: p.parseExpression()}
		if p.failed() {
			return proj
		}
		if p.match(token.AS) {
			item.Alias = p.expectVariable()
		}
		if isWith && item.Name() == "" {
			p.errors = append(p.errors, &ParseError{Pos: itemPos, Message: "expression in WITH must be aliased (use AS)"})
			return proj
		}
		proj.Items = append(proj.Items, item)
		if !p.match(token.COMMA) {
			break
		}
	}

	p.parseProjectionTail(proj)
	return proj
}

func (p *Parser) parseProjectionTail(proj *Projection) {
	if p.check(token.ORDER) {
		p.nextToken()
		if !p.expect(token.BY) {
			return
		}
		for {
			item := &SortItem{Expr: p.parseExpression()}
			if p.failed() {
				return
			}
			switch p.token.Type {
			case token.DESC, token.DESCENDING:
				item.Desc = true
				p.nextToken()
			case token.ASC, token.ASCENDING:
				p.nextToken()
			}
			proj.OrderBy = append(proj.OrderBy, item)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	if p.match(token.SKIP) || p.match(token.OFFSET) {
		proj.Skip = p.parseExpression()
	}
	if p.match(token.LIMIT) {
		proj.Limit = p.parseExpression()
	}
}

func (p *Parser) parseCreate() Clause {
	c := &CreateClause{Pos: p.token.Pos}
	p.nextToken()
	c.Pattern = p.parsePattern()
	if p.failed() {
		return nil
	}
	return c
}

func (p *Parser) parseMerge() Clause {
	c := &MergeClause{Pos: p.token.Pos}
	p.nextToken()
	c.Pattern = p.parsePatternPart()
	if p.failed() {
		return nil
	}
	for p.check(token.ON) {
		p.nextToken()
		var onCreate bool
		switch {
		case p.match(token.CREATE):
			onCreate = true
		case p.match(token.MATCH):
		default:
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "CREATE or MATCH"))
			return nil
		}
		if !p.expect(token.SET) {
			return nil
		}
		items := p.parseSetItems()
		if p.failed() {
			return nil
		}
		if onCreate {
			c.OnCreate = append(c.OnCreate, items...)
		} else {
			c.OnMatch = append(c.OnMatch, items...)
		}
	}
	return c
}

func (p *Parser) parseSet() Clause {
	c := &SetClause{Pos: p.token.Pos}
	p.nextToken()
	c.Items = p.parseSetItems()
	if p.failed() {
		return nil
	}
	return c
}

func (p *Parser) parseSetItems() []*SetItem {
	var items []*SetItem
	for {
		item := p.parseSetItem()
		if item == nil {
			return nil
		}
		items = append(items, item)
		if !p.match(token.COMMA) {
			return items
		}
	}
}

func (p *Parser) parseSetItem() *SetItem {
	pos := p.token.Pos
	name := p.expectVariable()
	if name == "" {
		return nil
	}
	item := &SetItem{Variable: name}

	switch p.token.Type {
	case token.DOT:
		var target Expr = &Variable{Pos: pos, Name: name}
		for p.match(token.DOT) {
			keyPos := p.token.Pos
			key := p.expectName("property key")
			if key == "" {
				return nil
			}
			target = &PropertyAccess{Pos: keyPos, Expr: target, Key: key}
		}
		item.Kind = SetProperty
		item.Property = target.(*PropertyAccess)
		if !p.expect(token.EQ) {
			return nil
		}
		item.Value = p.parseExpression()
	case token.EQ:
		p.nextToken()
		item.Kind = SetAll
		item.Value = p.parseExpression()
	case token.PLUSEQ:
		p.nextToken()
		item.Kind = SetMergeProp
		item.Value = p.parseExpression()
	case token.COLON:
		item.Kind = SetLabels
		item.Labels = p.parseLabelList()
	default:
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "'.', '=', '+=' or ':'"))
		return nil
	}
	if p.failed() {
		return nil
	}
	return item
}

func (p *Parser) parseRemove() Clause {
	c := &RemoveClause{Pos: p.token.Pos}
	p.nextToken()
	for {
		pos := p.token.Pos
		name := p.expectVariable()
		if name == "" {
			return nil
		}
		item := &RemoveItem{Variable: name}
		switch p.token.Type {
		case token.COLON:
			item.Labels = p.parseLabelList()
		case token.DOT:
			p.nextToken()
			keyPos := p.token.Pos
			key := p.expectName("property key")
			item.Property = &PropertyAccess{Pos: keyPos, Expr: &Variable{Pos: pos, Name: name}, Key: key}
		default:
			p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "':' or '.'"))
			return nil
		}
		if p.failed() {
			return nil
		}
		c.Items = append(c.Items, item)
		if !p.match(token.COMMA) {
			return c
		}
	}
}

// parseLabelList parses (':' name)+.
func (p *Parser) parseLabelList() []string {
	var labels []string
	for p.match(token.COLON) {
		name := p.expectName("label")
		if name == "" {
			return nil
		}
		labels = append(labels, name)
	}
	return labels
}

func (p *Parser) parseDelete() Clause {
	c := &DeleteClause{Pos: p.token.Pos}
	if p.match(token.DETACH) {
		c.Detach = true
	}
	if !p.expect(token.DELETE) {
		return nil
	}
	for {
		e := p.parseExpression()
		if p.failed() {
			return nil
		}
		c.Exprs = append(c.Exprs, e)
		if !p.match(token.COMMA) {
			return c
		}
	}
}

func (p *Parser) parseForeach() Clause {
	c := &ForeachClause{Pos: p.token.Pos}
	p.nextToken()
	if !p.expect(token.LPAREN) {
		return nil
	}
	c.Variable = p.expectVariable()
	if p.failed() || !p.expect(token.IN) {
		return nil
	}
	c.List = p.parseExpression()
	if p.failed() || !p.expect(token.PIPE) {
		return nil
	}
	for !p.check(token.RPAREN) && !p.check(token.EOF) {
		pos := p.token.Pos
		inner := p.parseClause()
		if inner == nil || p.failed() {
			return nil
		}
		if !IsUpdating(inner) {
			p.errors = append(p.errors, &ParseError{Pos: pos, Message: "FOREACH may only contain updating clauses"})
			return nil
		}
		c.Clauses = append(c.Clauses, inner)
	}
	if len(c.Clauses) == 0 {
		p.addError(fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "updating clause"))
		return nil
	}
	if !p.expect(token.RPAREN) {
		return nil
	}
	return c
}

func (p *Parser) parseCall() Clause {
	pos := p.token.Pos
	p.nextToken()

	if p.check(token.LBRACE) || p.check(token.LPAREN) {
		return p.parseSubqueryCall(pos)
	}

	c := &CallClause{Pos: pos}
	parts := []string{p.expectName("procedure name")}
	for !p.failed() && p.match(token.DOT) {
		parts = append(parts, p.expectName("procedure name"))
	}
	if p.failed() {
		return nil
	}
	c.Procedure = strings.Join(parts, ".")

	if p.match(token.LPAREN) {
		if !p.check(token.RPAREN) {
			c.Args = p.parseExpressionList()
			if p.failed() {
				return nil
			}
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
	}

	if p.match(token.YIELD) {
		if p.match(token.STAR) {
			c.YieldStar = true
		} else {
			for {
				field := p.expectName("yield field")
				if field == "" {
					return nil
				}
				item := &YieldItem{Field: field}
				if p.match(token.AS) {
					item.Alias = p.expectVariable()
				}
				c.Yield = append(c.Yield, item)
				if !p.match(token.COMMA) {
					break
				}
			}
			if p.match(token.WHERE) {
				c.Where = p.parseExpression()
			}
		}
	}
	if p.failed() {
		return nil
	}
	return c
}

func (p *Parser) parseSubqueryCall(pos token.Position) Clause {
	c := &SubqueryClause{Pos: pos}

	// Scoped subquery: CALL (a, b) { ... } or CALL (*) { ... }
	if p.match(token.LPAREN) {
		if !p.match(token.STAR) {
			for !p.check(token.RPAREN) {
				if p.expectVariable() == "" {
					return nil
				}
				if !p.match(token.COMMA) {
					break
				}
			}
		}
		if !p.expect(token.RPAREN) {
			return nil
		}
	}

	if !p.expect(token.LBRACE) {
		return nil
	}
	c.Query = p.parseQuery(false)
	if p.failed() || !p.expect(token.RBRACE) {
		return nil
	}

	// IN TRANSACTIONS [OF n ROW[S]]
	if p.check(token.IN) && p.peek.Type == token.IDENT && strings.EqualFold(p.peek.Literal, "transactions") {
		p.nextToken()
		p.nextToken()
		c.InTransactions = true
		if p.match(token.OF) {
			p.parseExpression()
			if p.checkWord("rows") || p.checkWord("row") {
				p.nextToken()
			}
		}
	}
	if p.failed() {
		return nil
	}
	return c
}

func (p *Parser) parseLoadCSV() Clause {
	c := &LoadCSVClause{Pos: p.token.Pos}
	p.nextToken()
	if !p.expect(token.CSV) {
		return nil
	}
	if p.match(token.WITH) {
		if !p.expect(token.HEADERS) {
			return nil
		}
		c.WithHeaders = true
	}
	if !p.expect(token.FROM) {
		return nil
	}
	c.From = p.parseExpression()
	if p.failed() || !p.expect(token.AS) {
		return nil
	}
	c.Variable = p.expectVariable()
	if p.match(token.FIELDTERMINATOR) {
		p.expect(token.STRING)
	}
	if p.failed() {
		return nil
	}
	return c
}

func (p *Parser) parseUse() Clause {
	c := &UseClause{Pos: p.token.Pos}
	p.nextToken()
	parts := []string{p.expectName("graph name")}
	for !p.failed() && p.match(token.DOT) {
		parts = append(parts, p.expectName("graph name"))
	}
	if p.failed() {
		return nil
	}
	c.Graph = strings.Join(parts, ".")
	return c
}
