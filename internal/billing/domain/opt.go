package billing

// Opt is a field value that may be unset.
type Opt[T comparable] struct {
	value T
	set   bool
}

// Some returns a set value.
func Some[T comparable](value T) Opt[T] {
	return Opt[T]{value: value, set: true}
}

// Get returns the value and whether it is set.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the value is set.
func (o Opt[T]) IsSet() bool {
	return o.set
}

// Or returns the value, or fallback when unset.
func (o Opt[T]) Or(fallback T) T {
	if !o.set {
		return fallback
	}
	return o.value
}
