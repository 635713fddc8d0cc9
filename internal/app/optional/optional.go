// Package optional provides a tri-state value for PATCH-style inputs.
package optional

// Value distinguishes:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Value[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Value[T] { return Value[T]{} }
func Null[T any]() Value[T]        { return Value[T]{specified: true, isNull: true} }
func Some[T any](v T) Value[T]     { return Value[T]{specified: true, value: v} }

func (o Value[T]) IsSpecified() bool { return o.specified }
func (o Value[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Value[T]) Value() T          { return o.value }

// HasValue reports whether the field was sent with a non-null value.
func (o Value[T]) HasValue() bool { return o.specified && !o.isNull }
