package cypher

// Walk traverses an AST depth-first and calls fn for each node.
// If fn returns false, the children of that node are skipped.
func Walk(node Node, fn func(node Node) bool) {
	if isNil(node) {
		return
	}
	if !fn(node) {
		return
	}
	walkNode(node, fn)
}

func isNil(node Node) bool {
	if node == nil {
		return true
	}
	switch n := node.(type) {
	case *Query:
		return n == nil
	case *SingleQuery:
		return n == nil
	case *MapLiteral:
		return n == nil
	}
	return false
}

func walkExprs(exprs []Expr, fn func(Node) bool) {
	for _, e := range exprs {
		Walk(e, fn)
	}
}

func walkPattern(parts []*PatternPart, fn func(Node) bool) {
	for _, part := range parts {
		Walk(part, fn)
	}
}

func walkElement(el *PatternElement, fn func(Node) bool) {
	if el == nil {
		return
	}
	for i, n := range el.Nodes {
		Walk(n, fn)
		if i < len(el.Rels) {
			Walk(el.Rels[i], fn)
		}
	}
}

func walkProjection(proj *Projection, fn func(Node) bool) {
	if proj == nil {
		return
	}
	for _, item := range proj.Items {
		Walk(item.Expr, fn)
	}
	for _, s := range proj.OrderBy {
		Walk(s.Expr, fn)
	}
	Walk(proj.Skip, fn)
	Walk(proj.Limit, fn)
}

func walkSetItems(items []*SetItem, fn func(Node) bool) {
	for _, item := range items {
		if item.Property != nil {
			Walk(item.Property, fn)
		}
		Walk(item.Value, fn)
	}
}

func walkNode(node Node, fn func(Node) bool) {
	switch n := node.(type) {
	case *Query:
		for _, part := range n.Parts {
			Walk(part, fn)
		}
	case *SingleQuery:
		for _, c := range n.Clauses {
			Walk(c, fn)
		}

	// Clauses
	case *MatchClause:
		walkPattern(n.Pattern, fn)
		Walk(n.Where, fn)
	case *UnwindClause:
		Walk(n.Expr, fn)
	case *WithClause:
		walkProjection(n.Projection, fn)
		Walk(n.Where, fn)
	case *ReturnClause:
		walkProjection(n.Projection, fn)
	case *CreateClause:
		walkPattern(n.Pattern, fn)
	case *MergeClause:
		if n.Pattern != nil {
			Walk(n.Pattern, fn)
		}
		walkSetItems(n.OnCreate, fn)
		walkSetItems(n.OnMatch, fn)
	case *SetClause:
		walkSetItems(n.Items, fn)
	case *RemoveClause:
		for _, item := range n.Items {
			if item.Property != nil {
				Walk(item.Property, fn)
			}
		}
	case *DeleteClause:
		walkExprs(n.Exprs, fn)
	case *ForeachClause:
		Walk(n.List, fn)
		for _, c := range n.Clauses {
			Walk(c, fn)
		}
	case *CallClause:
		walkExprs(n.Args, fn)
		Walk(n.Where, fn)
	case *SubqueryClause:
		Walk(n.Query, fn)
	case *LoadCSVClause:
		Walk(n.From, fn)

	// Patterns
	case *PatternPart:
		walkElement(n.Element, fn)
	case *NodePattern:
		Walk(n.Properties, fn)
	case *RelPattern:
		Walk(n.Properties, fn)

	// Expressions
	case *ListLiteral:
		walkExprs(n.Items, fn)
	case *MapLiteral:
		walkExprs(n.Values, fn)
	case *PropertyAccess:
		Walk(n.Expr, fn)
	case *IndexExpr:
		Walk(n.Expr, fn)
		Walk(n.Index, fn)
	case *SliceExpr:
		Walk(n.Expr, fn)
		Walk(n.From, fn)
		Walk(n.To, fn)
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *UnaryExpr:
		Walk(n.Expr, fn)
	case *IsNullExpr:
		Walk(n.Expr, fn)
	case *LabelPredicate:
		Walk(n.Expr, fn)
	case *FuncCall:
		walkExprs(n.Args, fn)
	case *CaseExpr:
		Walk(n.Operand, fn)
		for _, w := range n.Whens {
			Walk(w.Cond, fn)
			Walk(w.Result, fn)
		}
		Walk(n.Else, fn)
	case *ListComprehension:
		Walk(n.List, fn)
		Walk(n.Where, fn)
		Walk(n.Map, fn)
	case *QuantifierExpr:
		Walk(n.List, fn)
		Walk(n.Where, fn)
	case *PatternComprehension:
		walkElement(n.Pattern, fn)
		Walk(n.Where, fn)
		Walk(n.Map, fn)
	case *PatternExpr:
		walkElement(n.Pattern, fn)
	case *SubqueryExpr:
		if n.Query != nil {
			Walk(n.Query, fn)
		}
		walkPattern(n.Pattern, fn)
		Walk(n.Where, fn)
	case *MapProjection:
		for _, item := range n.Items {
			Walk(item.Value, fn)
		}
	}
}

// Variables returns the names of all variables referenced in e, in order of
// first appearance. Variables introduced inside comprehensions and
// quantifiers are included.
func Variables(e Node) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	Walk(e, func(n Node) bool {
		switch v := n.(type) {
		case *Variable:
			add(v.Name)
		case *MapProjection:
			add(v.Variable)
		case *NodePattern:
			add(v.Variable)
		case *RelPattern:
			add(v.Variable)
		}
		return true
	})
	return names
}
