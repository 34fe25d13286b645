package autograd

import "fmt"

// DomainError reports a mathematically undefined operation such as the log of
// a non-positive number or a division by zero. It is raised before the
// offending node is created.
type DomainError struct {
	Op      string
	Operand float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("autograd: %s undefined for operand %g", e.Op, e.Operand)
}

// Catch runs fn and returns the *DomainError it panicked with, if any.
// Panics of any other kind are re-raised.
func Catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			de, ok := r.(*DomainError)
			if !ok {
				panic(r)
			}
			err = de
		}
	}()
	fn()
	return nil
}
