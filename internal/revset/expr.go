// Package revset implements the revision query language: a parser from query
// text to an expression tree, a resolver for symbols, and an evaluator that
// turns an expression into an ordered list of commit ids.
//
// Grammar, lowest precedence first:
//
//	expr    := inter ( '|' inter )*
//	inter   := range ( ( '&' | '~' ) range )*
//	range   := prefix ( '..' prefix )?
//	prefix  := ':' prefix | '*:' prefix | primary
//	primary := '(' expr ')' | SYMBOL
package revset

// Expression is a parsed revset. The set of implementations is closed:
// Symbol, Parents, Ancestors, Union, Intersection, Difference and Range.
type Expression interface {
	// String returns revset text that parses back to an equal expression.
	String() string
	isExpression()
}

// Symbol names a single commit: "@", "root", a commit id prefix or a ref.
type Symbol struct {
	Name string
}

// Parents is the parents of every commit in Of.
type Parents struct {
	Of Expression
}

// Ancestors is every commit reachable from Of, including Of itself.
type Ancestors struct {
	Of Expression
}

// Union is the commits in either operand.
type Union struct {
	Left, Right Expression
}

// Intersection is the commits in both operands.
type Intersection struct {
	Left, Right Expression
}

// Difference is the commits in Left but not in Right.
type Difference struct {
	Left, Right Expression
}

// Range is the ancestors of To that are not ancestors of From.
type Range struct {
	From, To Expression
}

func (Symbol) isExpression()       {}
func (Parents) isExpression()      {}
func (Ancestors) isExpression()    {}
func (Union) isExpression()        {}
func (Intersection) isExpression() {}
func (Difference) isExpression()   {}
func (Range) isExpression()        {}

func (e Symbol) String() string { return e.Name }

func (e Parents) String() string { return ":" + operand(e.Of) }

func (e Ancestors) String() string { return "*:" + operand(e.Of) }

func (e Union) String() string {
	right := e.Right.String()
	if _, ok := e.Right.(Union); ok {
		right = "(" + right + ")"
	}
	return e.Left.String() + " | " + right
}

func (e Intersection) String() string {
	return binaryOperand(e.Left) + " & " + binaryRight(e.Right)
}

func (e Difference) String() string {
	return binaryOperand(e.Left) + " ~ " + binaryRight(e.Right)
}

func (e Range) String() string { return operand(e.From) + ".." + operand(e.To) }

// operand wraps anything looser than a prefix expression in parentheses.
func operand(e Expression) string {
	switch e.(type) {
	case Symbol, Parents, Ancestors:
		return e.String()
	default:
		return "(" + e.String() + ")"
	}
}

// binaryOperand renders the left side of & and ~, which are left-associative.
func binaryOperand(e Expression) string {
	if _, ok := e.(Union); ok {
		return "(" + e.String() + ")"
	}
	return e.String()
}

func binaryRight(e Expression) string {
	switch e.(type) {
	case Union, Intersection, Difference:
		return "(" + e.String() + ")"
	default:
		return e.String()
	}
}
