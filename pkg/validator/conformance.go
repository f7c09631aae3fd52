package validator

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/cypher"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
	"github.com/leapstack-labs/graphask/pkg/token"
)

type varKind int

const (
	kindValue varKind = iota
	kindNode
	kindRel
	// kindElement is a node or relationship of unknown type.
	kindElement
)

// binding records what a variable refers to. For nodes, names are the
// labels known for it; for relationships, the allowed types. A list is
// described by its elements.
type binding struct {
	kind  varKind
	names []string
}

type scope map[string]binding

func (s scope) bind(name string, kind varKind, names []string) {
	if name == "" {
		return
	}
	if b, ok := s[name]; ok && b.kind == kind {
		for _, n := range names {
			if !slices.Contains(b.names, n) {
				b.names = append(b.names, n)
			}
		}
		s[name] = b
		return
	}
	s[name] = binding{kind: kind, names: slices.Clone(names)}
}

// conformance checks that every schema element a statement names exists.
// Variables that may hold nodes or relationships are checked for property
// keys; maps, parameters and scalars carry arbitrary keys.
type conformance struct {
	snap *graphschema.Snapshot
	fail *core.Verdict
}

func checkConformance(stmt cypher.Statement, snap *graphschema.Snapshot) *core.Verdict {
	c := &conformance{snap: snap}
	if q, ok := stmt.(*cypher.Query); ok {
		c.query(q, scope{})
	}
	return c.fail
}

func (c *conformance) reject(fragment, detail string, pos token.Position) {
	if c.fail == nil {
		v := core.Reject(core.ReasonUnknownSchema, fragment, detail, pos)
		c.fail = &v
	}
}

func (c *conformance) failed() bool { return c.fail != nil }

// query checks every part against a copy of outer and returns the scope
// produced by the first part's RETURN, or nil if it does not return.
func (c *conformance) query(q *cypher.Query, outer scope) scope {
	var out scope
	for i, part := range q.Parts {
		s := maps.Clone(outer)
		for _, cl := range part.Clauses {
			s = c.clause(cl, s)
			if c.failed() {
				return nil
			}
		}
		if i == 0 {
			if _, ok := part.Clauses[len(part.Clauses)-1].(*cypher.ReturnClause); ok {
				out = s
			}
		}
	}
	return out
}

func (c *conformance) clause(cl cypher.Clause, s scope) scope {
	switch n := cl.(type) {
	case *cypher.MatchClause:
		c.pattern(n.Pattern, s)
		c.expr(n.Where, s)
	case *cypher.UnwindClause:
		c.expr(n.Expr, s)
		s[n.Alias] = elemOf(n.Expr, s)
	case *cypher.WithClause:
		s = c.projection(n.Projection, s)
		c.expr(n.Where, s)
	case *cypher.ReturnClause:
		s = c.projection(n.Projection, s)
	case *cypher.CreateClause:
		c.pattern(n.Pattern, s)
	case *cypher.MergeClause:
		c.pattern([]*cypher.PatternPart{n.Pattern}, s)
		c.setItems(n.OnCreate, n.Pos, s)
		c.setItems(n.OnMatch, n.Pos, s)
	case *cypher.SetClause:
		c.setItems(n.Items, n.Pos, s)
	case *cypher.RemoveClause:
		for _, item := range n.Items {
			c.labels(item.Labels, n.Pos)
			if item.Property != nil {
				c.expr(item.Property, s)
			}
		}
	case *cypher.DeleteClause:
		for _, e := range n.Exprs {
			c.expr(e, s)
		}
	case *cypher.ForeachClause:
		c.expr(n.List, s)
		inner := maps.Clone(s)
		inner[n.Variable] = elemOf(n.List, s)
		for _, sub := range n.Clauses {
			inner = c.clause(sub, inner)
		}
	case *cypher.CallClause:
		for _, arg := range n.Args {
			c.expr(arg, s)
		}
		for _, y := range n.Yield {
			s[y.Name()] = binding{}
		}
		c.expr(n.Where, s)
	case *cypher.SubqueryClause:
		for name, b := range c.query(n.Query, s) {
			s[name] = b
		}
	case *cypher.LoadCSVClause:
		c.expr(n.From, s)
		s[n.Variable] = binding{}
	}
	return s
}

// projection checks a WITH or RETURN body and returns the scope it
// projects. Bare variables keep their binding.
func (c *conformance) projection(p *cypher.Projection, s scope) scope {
	next := scope{}
	if p.Star {
		next = maps.Clone(s)
	}
	for _, item := range p.Items {
		c.expr(item.Expr, s)
		name := item.Name()
		if name == "" {
			continue
		}
		if v, ok := item.Expr.(*cypher.Variable); ok {
			if b, ok := s[v.Name]; ok {
				next[name] = b
				continue
			}
		}
		next[name] = elemOf(item.Expr, s)
	}

	// ORDER BY sees both the incoming variables and the projected names.
	merged := maps.Clone(s)
	maps.Copy(merged, next)
	for _, o := range p.OrderBy {
		c.expr(o.Expr, merged)
	}
	c.expr(p.Skip, s)
	c.expr(p.Limit, s)
	return next
}

func (c *conformance) setItems(items []*cypher.SetItem, pos token.Position, s scope) {
	for _, item := range items {
		if c.failed() {
			return
		}
		switch item.Kind {
		case cypher.SetProperty:
			c.expr(item.Property, s)
			c.expr(item.Value, s)
		case cypher.SetAll, cypher.SetMergeProp:
			c.expr(item.Value, s)
			if m, ok := item.Value.(*cypher.MapLiteral); ok {
				if b, ok := s[item.Variable]; ok {
					for _, key := range m.Keys {
						c.propertyKey(item.Variable, b, key, m.Pos)
					}
				}
			}
		case cypher.SetLabels:
			c.labels(item.Labels, pos)
			if b, ok := s[item.Variable]; ok && b.kind == kindNode {
				s.bind(item.Variable, kindNode, item.Labels)
			}
		}
	}
}

func (c *conformance) labels(labels []string, pos token.Position) {
	for _, l := range labels {
		if !c.snap.HasLabel(l) {
			c.reject(l, fmt.Sprintf("label %s does not exist in the schema", l), pos)
			return
		}
	}
}

// pattern binds the variables of a pattern and checks its labels, types and
// inline property maps.
func (c *conformance) pattern(parts []*cypher.PatternPart, s scope) {
	for _, part := range parts {
		c.element(part.Element, s)
		if part.Variable != "" {
			s[part.Variable] = binding{}
		}
	}
	for _, part := range parts {
		c.elementProps(part.Element, s)
	}
}

func (c *conformance) element(el *cypher.PatternElement, s scope) {
	if el == nil || c.failed() {
		return
	}
	for _, n := range el.Nodes {
		c.labels(n.Labels, n.Pos)
		if c.failed() {
			return
		}
		s.bind(n.Variable, kindNode, n.Labels)
	}
	for _, r := range el.Rels {
		for _, t := range r.Types {
			if !c.snap.HasRelType(t) {
				c.reject(t, fmt.Sprintf("relationship type %s does not exist in the schema", t), r.Pos)
				return
			}
		}
		if r.Length != nil {
			// A variable-length relationship binds a list of them.
			if r.Variable != "" {
				s[r.Variable] = binding{kind: kindRel, names: slices.Clone(r.Types)}
			}
			continue
		}
		s.bind(r.Variable, kindRel, r.Types)
	}
}

func (c *conformance) elementProps(el *cypher.PatternElement, s scope) {
	if el == nil {
		return
	}
	for _, n := range el.Nodes {
		b := binding{kind: kindNode, names: n.Labels}
		if n.Variable != "" {
			b = s[n.Variable]
		}
		c.mapKeys(n.Variable, b, n.Properties, s)
	}
	for _, r := range el.Rels {
		b := binding{kind: kindRel, names: r.Types}
		if r.Variable != "" && r.Length == nil {
			b = s[r.Variable]
		}
		c.mapKeys(r.Variable, b, r.Properties, s)
	}
}

func (c *conformance) mapKeys(name string, b binding, props cypher.Expr, s scope) {
	m, ok := props.(*cypher.MapLiteral)
	if !ok || m == nil || c.failed() {
		return
	}
	for i, key := range m.Keys {
		c.propertyKey(name, b, key, m.Pos)
		c.expr(m.Values[i], s)
	}
}

func (c *conformance) propertyKey(name string, b binding, key string, pos token.Position) {
	if c.failed() {
		return
	}
	switch b.kind {
	case kindNode:
		if c.snap.NodeHasProperty(b.names, key) {
			return
		}
		if len(b.names) == 0 {
			c.reject(key, fmt.Sprintf("property %s does not exist on any node", key), pos)
		} else {
			c.reject(key, fmt.Sprintf("property %s is not defined for %s", key, describeVar(name, ":"+strings.Join(b.names, ":"))), pos)
		}
	case kindRel:
		if c.snap.RelHasProperty(b.names, key) {
			return
		}
		if len(b.names) == 0 {
			c.reject(key, fmt.Sprintf("property %s does not exist on any relationship", key), pos)
		} else {
			c.reject(key, fmt.Sprintf("property %s is not defined for %s", key, describeVar(name, ":"+strings.Join(b.names, "|"))), pos)
		}
	case kindElement:
		if !c.snap.HasPropertyKey(key) {
			c.reject(key, fmt.Sprintf("property %s does not exist on any node or relationship", key), pos)
		}
	}
}

func describeVar(name, labels string) string {
	if name == "" {
		return "(" + labels + ")"
	}
	return "(" + name + labels + ")"
}

// expr checks property access and label predicates inside e. Constructs
// that introduce their own variables are handled in a child scope.
func (c *conformance) expr(e cypher.Expr, s scope) {
	if e == nil || c.failed() {
		return
	}
	cypher.Walk(e, func(node cypher.Node) bool {
		if c.failed() {
			return false
		}
		switch n := node.(type) {
		case *cypher.PropertyAccess:
			if v, ok := n.Expr.(*cypher.Variable); ok {
				if b, ok := s[v.Name]; ok {
					c.propertyKey(v.Name, b, n.Key, n.Pos)
				}
			}
		case *cypher.LabelPredicate:
			if v, ok := n.Expr.(*cypher.Variable); ok && s[v.Name].kind == kindRel {
				for _, t := range n.Labels {
					if !c.snap.HasRelType(t) {
						c.reject(t, fmt.Sprintf("relationship type %s does not exist in the schema", t), n.Pos)
						return false
					}
				}
				return true
			}
			c.labels(n.Labels, n.Pos)
		case *cypher.MapProjection:
			if b, ok := s[n.Variable]; ok {
				for _, item := range n.Items {
					if item.Property != "" {
						c.propertyKey(n.Variable, b, item.Property, n.Pos)
					}
				}
			}
		case *cypher.ListComprehension:
			c.expr(n.List, s)
			inner := maps.Clone(s)
			inner[n.Variable] = elemOf(n.List, s)
			c.expr(n.Where, inner)
			c.expr(n.Map, inner)
			return false
		case *cypher.QuantifierExpr:
			c.expr(n.List, s)
			inner := maps.Clone(s)
			inner[n.Variable] = elemOf(n.List, s)
			c.expr(n.Where, inner)
			return false
		case *cypher.PatternComprehension:
			inner := maps.Clone(s)
			c.element(n.Pattern, inner)
			if n.Variable != "" {
				inner[n.Variable] = binding{}
			}
			c.elementProps(n.Pattern, inner)
			c.expr(n.Where, inner)
			c.expr(n.Map, inner)
			return false
		case *cypher.PatternExpr:
			inner := maps.Clone(s)
			c.element(n.Pattern, inner)
			c.elementProps(n.Pattern, inner)
			return false
		case *cypher.SubqueryExpr:
			inner := maps.Clone(s)
			if n.Query != nil {
				c.query(n.Query, inner)
			} else {
				c.pattern(n.Pattern, inner)
				c.expr(n.Where, inner)
			}
			return false
		}
		return true
	})
}

// elemOf describes the value of e or, when e is a list, its elements.
// Maps, parameters and scalars are plain values. Anything that may hold a
// graph element without a known label or type is kindElement.
func elemOf(e cypher.Expr, s scope) binding {
	switch n := e.(type) {
	case *cypher.Variable:
		if b, ok := s[n.Name]; ok {
			return b
		}
		return binding{kind: kindElement}
	case *cypher.ListLiteral:
		if len(n.Items) == 0 {
			return binding{}
		}
		b := elemOf(n.Items[0], s)
		for _, item := range n.Items[1:] {
			b = merge(b, elemOf(item, s))
		}
		return b
	case *cypher.IndexExpr:
		return elemOf(n.Expr, s)
	case *cypher.SliceExpr:
		return elemOf(n.Expr, s)
	case *cypher.BinaryExpr:
		if n.Op == "+" {
			return merge(elemOf(n.Left, s), elemOf(n.Right, s))
		}
		return binding{}
	case *cypher.FuncCall:
		switch strings.ToLower(n.Name) {
		case "collect", "head", "last", "tail", "reverse", "coalesce":
			if len(n.Args) > 0 {
				return elemOf(n.Args[0], s)
			}
		case "nodes", "startnode", "endnode":
			return binding{kind: kindNode}
		case "relationships", "rels":
			return binding{kind: kindRel}
		}
		return binding{}
	case *cypher.ListComprehension:
		inner := maps.Clone(s)
		inner[n.Variable] = elemOf(n.List, s)
		if n.Map == nil {
			return inner[n.Variable]
		}
		return elemOf(n.Map, inner)
	case *cypher.CaseExpr, *cypher.PatternComprehension:
		return binding{kind: kindElement}
	}
	return binding{}
}

// merge describes a list holding elements described by a and b.
func merge(a, b binding) binding {
	if a.kind != b.kind {
		return binding{kind: kindElement}
	}
	if a.kind != kindNode && a.kind != kindRel {
		return a
	}
	// An element with no known labels may be anything.
	if len(a.names) == 0 || len(b.names) == 0 {
		return binding{kind: a.kind}
	}
	names := slices.Clone(a.names)
	for _, n := range b.names {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return binding{kind: a.kind, names: names}
}
