package predicate

// Node is a node of a parsed predicate.
type Node interface {
	node()
}

// LogicalOp joins two predicates.
type LogicalOp int

const (
	And LogicalOp = iota
	Or
)

// CompareOp is an infix comparison operator.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Gt
	Ge
	Lt
	Le
)

// Method is a string matching method called on a field.
type Method int

const (
	StartsWith Method = iota
	EndsWith
	Contains
)

// Logical is a binary AND or OR. Chains are left-associative: a && b && c is ((a && b) && c).
type Logical struct {
	Op    LogicalOp
	Left  Node
	Right Node
}

// Not negates its operand.
type Not struct {
	Operand Node
}

// Comparison compares the field at Path with a literal.
// Value is one of int64, float64, string, bool, time.Time, or nil.
type Comparison struct {
	Path  []string
	Op    CompareOp
	Value any
}

// MethodCall calls a string matching method on the field at Path.
type MethodCall struct {
	Path   []string
	Method Method
	Arg    any
}

func (Logical) node()    {}
func (Not) node()        {}
func (Comparison) node() {}
func (MethodCall) node() {}
