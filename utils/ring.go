package utils

// Ring is a bounded FIFO. Appending to a full ring evicts the oldest element. The zero value is
// not usable; use NewRing. Ring is not safe for concurrent use.
type Ring[T any] struct {
	items []T
	start int
	size  int
}

// NewRing returns an empty ring holding at most capacity elements. A non-positive capacity is
// treated as one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends item, evicting the oldest element when full. It reports whether an element was
// evicted.
func (r *Ring[T]) Push(item T) bool {
	if r.size < len(r.items) {
		r.items[(r.start+r.size)%len(r.items)] = item
		r.size++
		return false
	}
	r.items[r.start] = item
	r.start = (r.start + 1) % len(r.items)
	return true
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the maximum number of stored elements.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// At returns the i-th oldest element. It panics when i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("ring index out of range")
	}
	return r.items[(r.start+i)%len(r.items)]
}

// Last returns the newest element and whether there was one.
func (r *Ring[T]) Last() (T, bool) {
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.At(r.size - 1), true
}

// Newest returns up to n of the newest elements, oldest first.
func (r *Ring[T]) Newest(n int) []T {
	if n > r.size {
		n = r.size
	}
	if n < 0 {
		n = 0
	}
	out := make([]T, 0, n)
	for i := r.size - n; i < r.size; i++ {
		out = append(out, r.At(i))
	}
	return out
}

// Slice copies every element, oldest first.
func (r *Ring[T]) Slice() []T {
	return r.Newest(r.size)
}

// Clear removes every element.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.start = 0
	r.size = 0
}
