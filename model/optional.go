package model

import "fmt"

// Optional holds a value that may be undefined. The zero value is undefined.
//
// Statistics that can be missing (an unsurveyed cell, a cell with no
// returns) are carried as Optional rather than through sentinel values so
// that zero and "no data" never collide.
type Optional[T any] struct {
	value T
	valid bool
}

// Some returns a defined Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, valid: true}
}

// None returns an undefined Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is defined.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.valid
}

// Valid reports whether the value is defined.
func (o Optional[T]) Valid() bool { return o.valid }

// OrElse returns the value when defined, otherwise fallback.
func (o Optional[T]) OrElse(fallback T) T {
	if o.valid {
		return o.value
	}
	return fallback
}

// String renders the value, or "NA" when undefined.
func (o Optional[T]) String() string {
	if !o.valid {
		return "NA"
	}
	return fmt.Sprint(o.value)
}
