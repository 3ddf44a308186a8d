package partition

// Source is a pull-based stream of values, in the discipline of sql.Rows:
// call Next until it returns false, then consult Err. Close releases the
// underlying resources and must be safe to call more than once.
type Source[V any] interface {
	Next() bool
	Value() V
	Err() error
	Close() error
}

// sliceSource adapts an in-memory slice to a Source.
type sliceSource[V any] struct {
	items []V
	pos   int
}

// FromSlice returns a Source that yields the elements of items in order.
func FromSlice[V any](items []V) Source[V] {
	return &sliceSource[V]{items: items}
}

func (s *sliceSource[V]) Next() bool {
	if s.pos >= len(s.items) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceSource[V]) Value() V {
	return s.items[s.pos-1]
}

func (s *sliceSource[V]) Err() error { return nil }

func (s *sliceSource[V]) Close() error {
	s.pos = len(s.items)
	return nil
}

// Func adapts a pull function to a Source. The function returns the next
// value and true, or the zero value and false once the stream is exhausted.
func Func[V any](next func() (V, bool)) Source[V] {
	return &funcSource[V]{next: next}
}

type funcSource[V any] struct {
	next func() (V, bool)
	cur  V
	done bool
}

func (f *funcSource[V]) Next() bool {
	if f.done {
		return false
	}
	v, ok := f.next()
	if !ok {
		f.done = true
		return false
	}
	f.cur = v
	return true
}

func (f *funcSource[V]) Value() V { return f.cur }

func (f *funcSource[V]) Err() error { return nil }

func (f *funcSource[V]) Close() error {
	f.done = true
	return nil
}
