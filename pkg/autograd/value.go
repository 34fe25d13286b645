// Package autograd implements a scalar reverse-mode automatic differentiation
// engine. Every operation builds a new node that remembers its operands and the
// local derivative with respect to each of them; Backward walks the resulting
// DAG once in reverse topological order.
package autograd

import "math"

// Value is a scalar in the computation graph.
// Data is the forward value and is never changed by the engine once the node
// is built. Grad accumulates d(root)/d(this node) during Backward.
type Value struct {
	Data float64
	Grad float64

	children   []*Value
	localGrads []float64
}

// V creates a leaf scalar.
func V(x float64) *Value {
	return &Value{Data: x}
}

// Children returns the operands of v. Leaves have none.
func (v *Value) Children() []*Value {
	return v.children
}

// IsLeaf reports whether v was created by V rather than by an operation.
func (v *Value) IsLeaf() bool {
	return len(v.children) == 0
}

func unary(data float64, a *Value, grad float64) *Value {
	return &Value{Data: data, children: []*Value{a}, localGrads: []float64{grad}}
}

func binary(data float64, a, b *Value, ga, gb float64) *Value {
	return &Value{Data: data, children: []*Value{a, b}, localGrads: []float64{ga, gb}}
}

func Add(a, b *Value) *Value {
	return binary(a.Data+b.Data, a, b, 1, 1)
}

func Sub(a, b *Value) *Value {
	return binary(a.Data-b.Data, a, b, 1, -1)
}

func Mul(a, b *Value) *Value {
	return binary(a.Data*b.Data, a, b, b.Data, a.Data)
}

// Div panics with a *DomainError when b is zero.
func Div(a, b *Value) *Value {
	if b.Data == 0 {
		panic(&DomainError{Op: "div", Operand: b.Data})
	}
	return binary(a.Data/b.Data, a, b, 1/b.Data, -a.Data/(b.Data*b.Data))
}

// Pow raises a to the constant power p. It panics with a *DomainError for
// a zero base with a negative exponent and for a negative base with a
// non-integer exponent.
func Pow(a *Value, p float64) *Value {
	if a.Data == 0 && p < 0 {
		panic(&DomainError{Op: "pow", Operand: a.Data})
	}
	if a.Data < 0 && p != math.Trunc(p) {
		panic(&DomainError{Op: "pow", Operand: a.Data})
	}
	return unary(math.Pow(a.Data, p), a, p*math.Pow(a.Data, p-1))
}

func Exp(a *Value) *Value {
	ed := math.Exp(a.Data)
	return unary(ed, a, ed)
}

// Log panics with a *DomainError when a is not strictly positive.
func Log(a *Value) *Value {
	if !(a.Data > 0) {
		panic(&DomainError{Op: "log", Operand: a.Data})
	}
	return unary(math.Log(a.Data), a, 1/a.Data)
}

func ReLU(a *Value) *Value {
	if a.Data > 0 {
		return unary(a.Data, a, 1)
	}
	return unary(0, a, 0)
}

func Neg(a *Value) *Value {
	return unary(-a.Data, a, -1)
}

// The *Const variants take a plain number as the right operand. The constant
// is not a node, so it never receives a gradient.

func AddConst(a *Value, c float64) *Value {
	return unary(a.Data+c, a, 1)
}

func SubConst(a *Value, c float64) *Value {
	return unary(a.Data-c, a, 1)
}

func MulConst(a *Value, c float64) *Value {
	return unary(a.Data*c, a, c)
}

func DivConst(a *Value, c float64) *Value {
	if c == 0 {
		panic(&DomainError{Op: "div", Operand: c})
	}
	return unary(a.Data/c, a, 1/c)
}

// Sum adds xs left to right. The sum of no values is a zero leaf.
func Sum(xs []*Value) *Value {
	if len(xs) == 0 {
		return V(0)
	}
	s := xs[0]
	for _, x := range xs[1:] {
		s = Add(s, x)
	}
	return s
}

func Mean(xs []*Value) *Value {
	return DivConst(Sum(xs), float64(len(xs)))
}

// Dot is the inner product of two equal-length vectors.
func Dot(a, b []*Value) *Value {
	terms := make([]*Value, len(a))
	for i := range a {
		terms[i] = Mul(a[i], b[i])
	}
	return Sum(terms)
}

// Data copies the forward values of xs.
func Data(xs []*Value) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x.Data
	}
	return out
}
