package validator

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/cypher"
	"github.com/leapstack-labs/graphask/pkg/token"
)

// rows maps every bound variable to whether it is scoped, meaning the set
// of rows it ranges over is narrowed by a property map, a WHERE comparison
// on one of its properties, a small literal LIMIT, or a relationship to
// something that is.
type rows map[string]bool

// unscoped returns the first unscoped variable in name order.
func (r rows) unscoped() string {
	for _, name := range slices.Sorted(maps.Keys(r)) {
		if !r[name] {
			return name
		}
	}
	return ""
}

// derived reports whether a value computed from e is scoped: every bound
// variable it reads must be.
func (r rows) derived(e cypher.Expr) bool {
	for _, name := range cypher.Variables(e) {
		if scoped, bound := r[name]; bound && !scoped {
			return false
		}
	}
	return true
}

type safety struct {
	policy Policy
	fail   *core.Verdict
}

func checkSafety(stmt cypher.Statement, policy Policy) *core.Verdict {
	c := &safety{policy: policy}
	switch s := stmt.(type) {
	case *cypher.AdminStatement:
		if policy.ReadOnly || !policy.AllowDangerous {
			c.reject(s.Command, "schema and administration commands are not allowed", s.Pos)
		}
	case *cypher.ShowStatement:
		// read-only
	case *cypher.Query:
		c.query(s, rows{})
	}
	return c.fail
}

func (c *safety) reject(fragment, detail string, pos token.Position) {
	if c.fail == nil {
		v := core.Reject(core.ReasonDisallowed, fragment, detail, pos)
		c.fail = &v
	}
}

func (c *safety) failed() bool { return c.fail != nil }

// gated reports whether writes must be scoped.
func (c *safety) gated() bool { return !c.policy.AllowDangerous }

func (c *safety) query(q *cypher.Query, outer rows) rows {
	var out rows
	for i, part := range q.Parts {
		r := maps.Clone(outer)
		for _, cl := range part.Clauses {
			r = c.clause(cl, r)
			if c.failed() {
				return nil
			}
		}
		if i == 0 {
			if _, ok := part.Clauses[len(part.Clauses)-1].(*cypher.ReturnClause); ok {
				out = r
			}
		}
	}
	return out
}

func (c *safety) clause(cl cypher.Clause, r rows) rows {
	if cypher.IsUpdating(cl) && c.policy.ReadOnly {
		c.reject(cl.Keyword(), "writes are disabled in read-only mode", cl.Position())
		return r
	}

	switch n := cl.(type) {
	case *cypher.MatchClause:
		c.match(n.Pattern, n.Where, r)
	case *cypher.UnwindClause:
		r[n.Alias] = r.derived(n.Expr)
	case *cypher.WithClause:
		r = c.projection(n.Projection, r)
		if n.Where != nil {
			for name := range filterVars(n.Where) {
				if _, bound := r[name]; bound {
					r[name] = true
				}
			}
		}
	case *cypher.ReturnClause:
		r = c.projection(n.Projection, r)

	case *cypher.CreateClause:
		c.requireScopedRows("CREATE", r, n.Pos)
		for _, part := range n.Pattern {
			for _, name := range patternVars(part) {
				if _, bound := r[name]; !bound {
					r[name] = true
				}
			}
		}
	case *cypher.MergeClause:
		c.requireScopedRows("MERGE", r, n.Pos)
		c.match([]*cypher.PatternPart{n.Pattern}, nil, r)
		c.requireTargets("ON CREATE SET", setVars(n.OnCreate), r, n.Pos)
		c.requireTargets("ON MATCH SET", setVars(n.OnMatch), r, n.Pos)
	case *cypher.SetClause:
		c.requireTargets("SET", setVars(n.Items), r, n.Pos)
		c.requireScopedRows("SET", r, n.Pos)
	case *cypher.RemoveClause:
		var names []string
		for _, item := range n.Items {
			names = append(names, item.Variable)
		}
		c.requireTargets("REMOVE", names, r, n.Pos)
		c.requireScopedRows("REMOVE", r, n.Pos)
	case *cypher.DeleteClause:
		var names []string
		for _, e := range n.Exprs {
			names = append(names, cypher.Variables(e)...)
		}
		c.requireTargets(n.Keyword(), names, r, n.Pos)
		c.requireScopedRows(n.Keyword(), r, n.Pos)
	case *cypher.ForeachClause:
		c.requireScopedRows("FOREACH", r, n.Pos)
		inner := maps.Clone(r)
		inner[n.Variable] = r.derived(n.List)
		for _, sub := range n.Clauses {
			inner = c.clause(sub, inner)
			if c.failed() {
				break
			}
		}

	case *cypher.CallClause:
		if !c.policy.AllowsProcedure(n.Procedure) && (c.policy.ReadOnly || c.gated()) {
			c.reject("CALL "+n.Procedure, fmt.Sprintf("procedure %s is not on the read-only allowlist", n.Procedure), n.Pos)
			return r
		}
		for _, y := range n.Yield {
			r[y.Name()] = true
		}
	case *cypher.SubqueryClause:
		for name, scoped := range c.query(n.Query, r) {
			r[name] = scoped
		}
	case *cypher.LoadCSVClause:
		if c.policy.ReadOnly || c.gated() {
			c.reject("LOAD CSV", "LOAD CSV reads external files and is not allowed", n.Pos)
			return r
		}
		r[n.Variable] = true
	}
	return r
}

// match binds the variables of a reading pattern. A variable is scoped when
// its node or relationship has an inline property map, when where filters
// on it, or when it shares a pattern chain with anything scoped.
func (c *safety) match(parts []*cypher.PatternPart, where cypher.Expr, r rows) {
	filtered := filterVars(where)

	type chain struct {
		vars     []string
		anchored bool
	}
	chains := make([]chain, 0, len(parts))
	for _, part := range parts {
		ch := chain{vars: patternVars(part)}
		if el := part.Element; el != nil {
			for _, n := range el.Nodes {
				if narrows(n.Properties) {
					ch.anchored = true
				}
			}
			for _, rel := range el.Rels {
				if narrows(rel.Properties) {
					ch.anchored = true
				}
			}
		}
		for _, name := range ch.vars {
			if filtered[name] {
				ch.anchored = true
			}
			if _, bound := r[name]; !bound {
				r[name] = false
			}
		}
		chains = append(chains, ch)
	}

	// Parts of one MATCH can share variables, so spread until stable.
	for changed := true; changed; {
		changed = false
		for _, ch := range chains {
			scoped := ch.anchored
			for _, name := range ch.vars {
				scoped = scoped || r[name]
			}
			if !scoped {
				continue
			}
			for _, name := range ch.vars {
				if !r[name] {
					r[name] = true
					changed = true
				}
			}
		}
	}
}

// projection returns the rows visible after WITH or RETURN.
func (c *safety) projection(p *cypher.Projection, r rows) rows {
	next := rows{}
	if p.Star {
		next = maps.Clone(r)
	}
	for _, item := range p.Items {
		name := item.Name()
		if name == "" {
			continue
		}
		if v, ok := item.Expr.(*cypher.Variable); ok {
			next[name] = r[v.Name]
			continue
		}
		next[name] = r.derived(item.Expr)
	}
	if c.smallLimit(p.Limit) {
		for name := range next {
			next[name] = true
		}
	}
	return next
}

// smallLimit reports whether limit is an integer literal within the
// policy's write limit.
func (c *safety) smallLimit(limit cypher.Expr) bool {
	lit, ok := limit.(*cypher.Literal)
	if !ok || lit.Kind != cypher.LitInteger {
		return false
	}
	n, err := strconv.ParseInt(lit.Value, 0, 64)
	return err == nil && n >= 0 && n <= c.policy.writeLimit()
}

// requireScopedRows rejects a write that would run once per row of an
// unscoped variable.
func (c *safety) requireScopedRows(keyword string, r rows, pos token.Position) {
	if !c.gated() || c.failed() {
		return
	}
	if name := r.unscoped(); name != "" {
		c.reject(keyword+" "+name,
			fmt.Sprintf("%s would run for every match of unscoped variable %s; match it by a property or add a WHERE comparison on one", keyword, name), pos)
	}
}

// requireTargets rejects a write whose target variables are unbound or
// unscoped.
func (c *safety) requireTargets(keyword string, names []string, r rows, pos token.Position) {
	if !c.gated() || c.failed() {
		return
	}
	for _, name := range names {
		scoped, bound := r[name]
		switch {
		case !bound:
			c.reject(keyword+" "+name, fmt.Sprintf("variable %s is not bound by a MATCH", name), pos)
			return
		case !scoped:
			c.reject(keyword+" "+name,
				fmt.Sprintf("variable %s is not scoped; match it by a property or add a WHERE comparison on one", name), pos)
			return
		}
	}
}

// narrowing are the comparisons that pin a property to a value. <> is left
// out since it keeps nearly every row.
var narrowing = map[string]bool{
	"=": true, "<": true, ">": true, "<=": true, ">=": true, "=~": true,
	"IN": true, "STARTS WITH": true, "ENDS WITH": true, "CONTAINS": true,
}

// filterVars returns the variables a predicate scopes. Only conjuncts of the
// top-level AND chain count, and each must compare a property of the
// variable, or its id, with a value that does not read the variable.
// Disjunctions, negations, label tests and null checks scope nothing.
func filterVars(e cypher.Expr) map[string]bool {
	out := make(map[string]bool)
	for _, cond := range conjuncts(e) {
		b, ok := cond.(*cypher.BinaryExpr)
		if !ok || !narrowing[b.Op] {
			continue
		}
		if name := keyOf(b.Left); name != "" && !slices.Contains(cypher.Variables(b.Right), name) {
			out[name] = true
		}
		// 'x' IN n.tags tests membership, not identity.
		if b.Op == "IN" {
			continue
		}
		if name := keyOf(b.Right); name != "" && !slices.Contains(cypher.Variables(b.Left), name) {
			out[name] = true
		}
	}
	return out
}

func conjuncts(e cypher.Expr) []cypher.Expr {
	if e == nil {
		return nil
	}
	if b, ok := e.(*cypher.BinaryExpr); ok && b.Op == "AND" {
		return append(conjuncts(b.Left), conjuncts(b.Right)...)
	}
	return []cypher.Expr{e}
}

// keyOf returns v for v.prop, id(v) and elementId(v).
func keyOf(e cypher.Expr) string {
	switch e := e.(type) {
	case *cypher.PropertyAccess:
		if v, ok := e.Expr.(*cypher.Variable); ok {
			return v.Name
		}
	case *cypher.FuncCall:
		name := strings.ToLower(e.Name)
		if (name == "id" || name == "elementid") && len(e.Args) == 1 {
			if v, ok := e.Args[0].(*cypher.Variable); ok {
				return v.Name
			}
		}
	}
	return ""
}

// narrows reports whether an inline property map constrains its element.
// A parameter is assumed to carry at least one key.
func narrows(props cypher.Expr) bool {
	switch p := props.(type) {
	case nil:
		return false
	case *cypher.MapLiteral:
		return p != nil && len(p.Keys) > 0
	}
	return true
}

func patternVars(part *cypher.PatternPart) []string {
	var names []string
	if part.Variable != "" {
		names = append(names, part.Variable)
	}
	if part.Element == nil {
		return names
	}
	for _, n := range part.Element.Nodes {
		if n.Variable != "" {
			names = append(names, n.Variable)
		}
	}
	for _, rel := range part.Element.Rels {
		if rel.Variable != "" {
			names = append(names, rel.Variable)
		}
	}
	return names
}

func setVars(items []*cypher.SetItem) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Variable)
	}
	return names
}
