package formstate

// Binding is a typed two-way handle on one field of a State. Each control
// kind binds with a fixed T: string, bool or time.Time.
type Binding[T any] struct {
	state *State
	name  string
}

// Bind returns the binding for name on s.
func Bind[T any](s *State, name string) Binding[T] {
	return Binding[T]{state: s, name: name}
}

func (b Binding[T]) Name() string { return b.name }

// Value returns the stored value, or the zero T when the field is unset or
// holds a value of another type.
func (b Binding[T]) Value() T {
	var zero T
	raw, ok := b.state.Get(b.name)
	if !ok {
		return zero
	}
	v, ok := raw.(T)
	if !ok {
		return zero
	}
	return v
}

func (b Binding[T]) Set(v T) {
	b.state.Set(b.name, v)
}

func (b Binding[T]) Errors() []string {
	return b.state.FieldErrors(b.name)
}
