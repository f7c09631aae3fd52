package cypher

import "github.com/leapstack-labs/graphask/pkg/token"

// Node is implemented by every AST node.
type Node interface {
	Position() token.Position
}

// Statement is a parsed top-level statement.
type Statement interface {
	Node
	stmtNode()
}

// Clause is one clause of a single query part.
type Clause interface {
	Node
	clauseNode()
	// Keyword returns the clause keyword as written in canonical form,
	// e.g. "OPTIONAL MATCH" or "DETACH DELETE".
	Keyword() string
}

// Expr is an expression.
type Expr interface {
	Node
	exprNode()
}

// ---------- Statements ----------

// Query is a regular query, possibly the UNION of several single queries.
type Query struct {
	Pos   token.Position
	Parts []*SingleQuery
	// UnionAll is set when parts are combined with UNION ALL.
	UnionAll bool
}

// SingleQuery is an ordered list of clauses.
type SingleQuery struct {
	Pos     token.Position
	Clauses []Clause
}

// AdminStatement is a schema or administration command (index and
// constraint management, DROP, GRANT, database control). The parser
// records the leading keywords and skips the rest of the statement.
type AdminStatement struct {
	Pos     token.Position
	Command string // e.g. "CREATE INDEX", "DROP", "GRANT"
	Text    string
}

// ShowStatement is a read-only SHOW command (SHOW INDEXES, SHOW DATABASES ...).
type ShowStatement struct {
	Pos  token.Position
	What string
	Text string
}

func (q *Query) Position() token.Position          { return q.Pos }
func (q *SingleQuery) Position() token.Position    { return q.Pos }
func (s *AdminStatement) Position() token.Position { return s.Pos }
func (s *ShowStatement) Position() token.Position  { return s.Pos }

func (*Query) stmtNode()          {}
func (*AdminStatement) stmtNode() {}
func (*ShowStatement) stmtNode()  {}

// ---------- Clauses ----------

// MatchClause is MATCH or OPTIONAL MATCH.
type MatchClause struct {
	Pos      token.Position
	Optional bool
	Pattern  []*PatternPart
	Where    Expr
}

// UnwindClause is UNWIND expr AS var.
type UnwindClause struct {
	Pos   token.Position
	Expr  Expr
	Alias string
}

// WithClause is WITH projection [WHERE expr].
type WithClause struct {
	Pos        token.Position
	Projection *Projection
	Where      Expr
}

// ReturnClause is RETURN projection.
type ReturnClause struct {
	Pos        token.Position
	Projection *Projection
}

// Projection is the body shared by WITH and RETURN.
type Projection struct {
	Distinct bool
	Star     bool
	Items    []*ProjectionItem
	OrderBy  []*SortItem
	Skip     Expr
	Limit    Expr
}

// ProjectionItem is expr [AS alias].
type ProjectionItem struct {
	Expr  Expr
	Alias string
}

// Name returns the column name the item projects to.
func (i *ProjectionItem) Name() string {
	if i.Alias != "" {
		return i.Alias
	}
	if v, ok := i.Expr.(*Variable); ok {
		return v.Name
	}
	return ""
}

// SortItem is one ORDER BY key.
type SortItem struct {
	Expr Expr
	Desc bool
}

// CreateClause is CREATE pattern.
type CreateClause struct {
	Pos     token.Position
	Pattern []*PatternPart
}

// MergeClause is MERGE pattern with optional ON CREATE / ON MATCH actions.
type MergeClause struct {
	Pos      token.Position
	Pattern  *PatternPart
	OnCreate []*SetItem
	OnMatch  []*SetItem
}

// SetClause is SET item, ...
type SetClause struct {
	Pos   token.Position
	Items []*SetItem
}

// SetItemKind enumerates the forms of a SET item.
type SetItemKind int

// SET item forms.
const (
	SetProperty  SetItemKind = iota // n.prop = expr
	SetAll                          // n = expr
	SetMergeProp                    // n += expr
	SetLabels                       // n:Label
)

// SetItem is one assignment in SET, ON CREATE SET or ON MATCH SET.
type SetItem struct {
	Kind     SetItemKind
	Variable string
	Property *PropertyAccess // for SetProperty
	Value    Expr
	Labels   []string
}

// RemoveClause is REMOVE item, ...
type RemoveClause struct {
	Pos   token.Position
	Items []*RemoveItem
}

// RemoveItem removes either labels from a variable or a property.
type RemoveItem struct {
	Variable string
	Labels   []string
	Property *PropertyAccess
}

// DeleteClause is [DETACH] DELETE expr, ...
type DeleteClause struct {
	Pos    token.Position
	Detach bool
	Exprs  []Expr
}

// ForeachClause is FOREACH (var IN list | updating clauses).
type ForeachClause struct {
	Pos      token.Position
	Variable string
	List     Expr
	Clauses  []Clause
}

// CallClause is a procedure call, standalone or in-query.
type CallClause struct {
	Pos       token.Position
	Procedure string // dotted name
	Args      []Expr
	YieldStar bool
	Yield     []*YieldItem
	Where     Expr
}

// YieldItem is field [AS alias].
type YieldItem struct {
	Field string
	Alias string
}

// Name returns the variable the item binds.
func (y *YieldItem) Name() string {
	if y.Alias != "" {
		return y.Alias
	}
	return y.Field
}

// SubqueryClause is CALL { query } [IN TRANSACTIONS].
type SubqueryClause struct {
	Pos            token.Position
	Query          *Query
	InTransactions bool
}

// LoadCSVClause is LOAD CSV [WITH HEADERS] FROM url AS var.
type LoadCSVClause struct {
	Pos         token.Position
	WithHeaders bool
	From        Expr
	Variable    string
}

// UseClause is USE graph.
type UseClause struct {
	Pos   token.Position
	Graph string
}

func (c *MatchClause) Position() token.Position    { return c.Pos }
func (c *UnwindClause) Position() token.Position   { return c.Pos }
func (c *WithClause) Position() token.Position     { return c.Pos }
func (c *ReturnClause) Position() token.Position   { return c.Pos }
func (c *CreateClause) Position() token.Position   { return c.Pos }
func (c *MergeClause) Position() token.Position    { return c.Pos }
func (c *SetClause) Position() token.Position      { return c.Pos }
func (c *RemoveClause) Position() token.Position   { return c.Pos }
func (c *DeleteClause) Position() token.Position   { return c.Pos }
func (c *ForeachClause) Position() token.Position  { return c.Pos }
func (c *CallClause) Position() token.Position     { return c.Pos }
func (c *SubqueryClause) Position() token.Position { return c.Pos }
func (c *LoadCSVClause) Position() token.Position  { return c.Pos }
func (c *UseClause) Position() token.Position      { return c.Pos }

func (*MatchClause) clauseNode()    {}
func (*UnwindClause) clauseNode()   {}
func (*WithClause) clauseNode()     {}
func (*ReturnClause) clauseNode()   {}
func (*CreateClause) clauseNode()   {}
func (*MergeClause) clauseNode()    {}
func (*SetClause) clauseNode()      {}
func (*RemoveClause) clauseNode()   {}
func (*DeleteClause) clauseNode()   {}
func (*ForeachClause) clauseNode()  {}
func (*CallClause) clauseNode()     {}
func (*SubqueryClause) clauseNode() {}
func (*LoadCSVClause) clauseNode()  {}
func (*UseClause) clauseNode()      {}

func (c *MatchClause) Keyword() string {
	if c.Optional {
		return "OPTIONAL MATCH"
	}
	return "MATCH"
}
func (*UnwindClause) Keyword() string { return "UNWIND" }
func (*WithClause) Keyword() string   { return "WITH" }
func (*ReturnClause) Keyword() string { return "RETURN" }
func (*CreateClause) Keyword() string { return "CREATE" }
func (*MergeClause) Keyword() string  { return "MERGE" }
func (*SetClause) Keyword() string    { return "SET" }
func (*RemoveClause) Keyword() string { return "REMOVE" }
func (c *DeleteClause) Keyword() string {
	if c.Detach {
		return "DETACH DELETE"
	}
	return "DELETE"
}
func (*ForeachClause) Keyword() string  { return "FOREACH" }
func (*CallClause) Keyword() string     { return "CALL" }
func (*SubqueryClause) Keyword() string { return "CALL" }
func (*LoadCSVClause) Keyword() string  { return "LOAD CSV" }
func (*UseClause) Keyword() string      { return "USE" }

// IsUpdating reports whether a clause writes to the graph.
func IsUpdating(c Clause) bool {
	switch c.(type) {
	case *CreateClause, *MergeClause, *SetClause, *RemoveClause, *DeleteClause, *ForeachClause:
		return true
	}
	return false
}

// ---------- Patterns ----------

// PatternPart is [var =] [shortestPath(] element [)].
type PatternPart struct {
	Pos      token.Position
	Variable string
	// Function is set for shortestPath / allShortestPaths wrappers.
	Function string
	Element  *PatternElement
}

// PatternElement is a chain node (rel node)*.
// len(Nodes) == len(Rels)+1.
type PatternElement struct {
	Nodes []*NodePattern
	Rels  []*RelPattern
}

// NodePattern is (var:Label:Label {props}).
type NodePattern struct {
	Pos        token.Position
	Variable   string
	Labels     []string
	Properties Expr // *MapLiteral or *Parameter
}

// Direction of a relationship pattern.
type Direction int

// Relationship directions.
const (
	DirBoth  Direction = iota // -[]-
	DirRight                  // -[]->
	DirLeft                   // <-[]-
)

// RelPattern is -[var:TYPE|TYPE *min..max {props}]->.
type RelPattern struct {
	Pos        token.Position
	Variable   string
	Types      []string
	Properties Expr
	Direction  Direction
	Length     *RangeLiteral
}

// RangeLiteral is the *min..max part of a variable length relationship.
// Nil bounds are open.
type RangeLiteral struct {
	Min *int64
	Max *int64
}

func (p *PatternPart) Position() token.Position { return p.Pos }
func (n *NodePattern) Position() token.Position { return n.Pos }
func (r *RelPattern) Position() token.Position  { return r.Pos }

// ---------- Expressions ----------

// Variable is a reference to a bound name.
type Variable struct {
	Pos  token.Position
	Name string
}

// LiteralKind enumerates literal value kinds.
type LiteralKind int

// Literal kinds.
const (
	LitInteger LiteralKind = iota
	LitFloat
	LitString
	LitBool
	LitNull
)

// Literal is a scalar literal.
type Literal struct {
	Pos   token.Position
	Kind  LiteralKind
	Value string
}

// Parameter is $name.
type Parameter struct {
	Pos  token.Position
	Name string
}

// ListLiteral is [a, b, c].
type ListLiteral struct {
	Pos   token.Position
	Items []Expr
}

// MapLiteral is {k: v, ...}. Keys keep source order.
type MapLiteral struct {
	Pos    token.Position
	Keys   []string
	Values []Expr
}

// PropertyAccess is expr.key.
type PropertyAccess struct {
	Pos  token.Position
	Expr Expr
	Key  string
}

// IndexExpr is expr[index].
type IndexExpr struct {
	Pos   token.Position
	Expr  Expr
	Index Expr
}

// SliceExpr is expr[from..to].
type SliceExpr struct {
	Pos  token.Position
	Expr Expr
	From Expr
	To   Expr
}

// BinaryExpr is left op right. Op is the canonical operator text, e.g.
// "AND", "=", "STARTS WITH", "IN", "=~".
type BinaryExpr struct {
	Pos   token.Position
	Op    string
	Left  Expr
	Right Expr
}

// UnaryExpr is NOT expr, -expr or +expr.
type UnaryExpr struct {
	Pos  token.Position
	Op   string
	Expr Expr
}

// IsNullExpr is expr IS [NOT] NULL.
type IsNullExpr struct {
	Pos  token.Position
	Expr Expr
	Not  bool
}

// LabelPredicate is expr:Label[:Label].
type LabelPredicate struct {
	Pos    token.Position
	Expr   Expr
	Labels []string
}

// FuncCall is name([DISTINCT] args) or count(*).
type FuncCall struct {
	Pos      token.Position
	Name     string // dotted, as written
	Distinct bool
	Star     bool
	Args     []Expr
}

// CaseExpr is a simple or searched CASE.
type CaseExpr struct {
	Pos     token.Position
	Operand Expr
	Whens   []*WhenClause
	Else    Expr
}

// WhenClause is WHEN cond THEN result.
type WhenClause struct {
	Cond   Expr
	Result Expr
}

// ListComprehension is [var IN list WHERE pred | expr].
type ListComprehension struct {
	Pos      token.Position
	Variable string
	List     Expr
	Where    Expr
	Map      Expr
}

// QuantifierExpr is all/any/none/single(var IN list WHERE pred).
type QuantifierExpr struct {
	Pos      token.Position
	Kind     string
	Variable string
	List     Expr
	Where    Expr
}

// PatternComprehension is [p = pattern WHERE pred | expr].
type PatternComprehension struct {
	Pos      token.Position
	Variable string
	Pattern  *PatternElement
	Where    Expr
	Map      Expr
}

// PatternExpr is a relationship pattern used as a predicate.
type PatternExpr struct {
	Pos     token.Position
	Pattern *PatternElement
}

// SubqueryExpr is EXISTS { ... }, COUNT { ... } or COLLECT { ... }.
// Either Query or Pattern is set.
type SubqueryExpr struct {
	Pos     token.Position
	Kind    string
	Query   *Query
	Pattern []*PatternPart
	Where   Expr
}

// MapProjection is var{.key, key: expr, .*}.
type MapProjection struct {
	Pos      token.Position
	Variable string
	Items    []*MapProjectionItem
}

// MapProjectionItem is one entry of a map projection.
type MapProjectionItem struct {
	// Property is set for .key entries.
	Property string
	// AllProperties is set for .*.
	AllProperties bool
	Key           string
	Value         Expr
	// Variable is set for bare variable entries.
	Variable string
}

func (e *Variable) Position() token.Position             { return e.Pos }
func (e *Literal) Position() token.Position              { return e.Pos }
func (e *Parameter) Position() token.Position            { return e.Pos }
func (e *ListLiteral) Position() token.Position          { return e.Pos }
func (e *MapLiteral) Position() token.Position           { return e.Pos }
func (e *PropertyAccess) Position() token.Position       { return e.Pos }
func (e *IndexExpr) Position() token.Position            { return e.Pos }
func (e *SliceExpr) Position() token.Position            { return e.Pos }
func (e *BinaryExpr) Position() token.Position           { return e.Pos }
func (e *UnaryExpr) Position() token.Position            { return e.Pos }
func (e *IsNullExpr) Position() token.Position           { return e.Pos }
func (e *LabelPredicate) Position() token.Position       { return e.Pos }
func (e *FuncCall) Position() token.Position             { return e.Pos }
func (e *CaseExpr) Position() token.Position             { return e.Pos }
func (e *ListComprehension) Position() token.Position    { return e.Pos }
func (e *QuantifierExpr) Position() token.Position       { return e.Pos }
func (e *PatternComprehension) Position() token.Position { return e.Pos }
func (e *PatternExpr) Position() token.Position          { return e.Pos }
func (e *SubqueryExpr) Position() token.Position         { return e.Pos }
func (e *MapProjection) Position() token.Position        { return e.Pos }

func (*Variable) exprNode()             {}
func (*Literal) exprNode()              {}
func (*Parameter) exprNode()            {}
func (*ListLiteral) exprNode()          {}
func (*MapLiteral) exprNode()           {}
func (*PropertyAccess) exprNode()       {}
func (*IndexExpr) exprNode()            {}
func (*SliceExpr) exprNode()            {}
func (*BinaryExpr) exprNode()           {}
func (*UnaryExpr) exprNode()            {}
func (*IsNullExpr) exprNode()           {}
func (*LabelPredicate) exprNode()       {}
func (*FuncCall) exprNode()             {}
func (*CaseExpr) exprNode()             {}
func (*ListComprehension) exprNode()    {}
func (*QuantifierExpr) exprNode()       {}
func (*PatternComprehension) exprNode() {}
func (*PatternExpr) exprNode()          {}
func (*SubqueryExpr) exprNode()         {}
func (*MapProjection) exprNode()        {}
