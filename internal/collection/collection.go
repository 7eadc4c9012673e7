// Package collection provides the ordered, 0-indexed container algebra
// shared by the roster entity types. All query operations are pure and
// return new collections; the handful of mutators exist for repository
// hydration and act on the receiver.
package collection

import "sort"

// Collection is a generic ordered container of entities of one type.
type Collection[T any] struct {
	items []T
}

// New creates a collection from the given items.
func New[T any](items ...T) *Collection[T] {
	c := &Collection[T]{items: make([]T, len(items))}
	copy(c.items, items)
	return c
}

// FromSlice wraps a slice without copying. The caller hands ownership of
// the slice to the collection.
func FromSlice[T any](items []T) *Collection[T] {
	return &Collection[T]{items: items}
}

// Len returns the number of items.
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// IsEmpty reports whether the collection holds no items.
func (c *Collection[T]) IsEmpty() bool {
	return len(c.items) == 0
}

// At returns the item at index i, with ok=false when out of range.
func (c *Collection[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(c.items) {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

// First returns the first item, with ok=false on an empty collection.
func (c *Collection[T]) First() (T, bool) {
	return c.At(0)
}

// Last returns the last item, with ok=false on an empty collection.
func (c *Collection[T]) Last() (T, bool) {
	return c.At(len(c.items) - 1)
}

// Items returns a copy of the underlying slice.
func (c *Collection[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Each calls fn for every item in order.
func (c *Collection[T]) Each(fn func(T)) {
	for _, item := range c.items {
		fn(item)
	}
}

// Filter returns a new collection with the items matching the predicate.
func (c *Collection[T]) Filter(pred func(T) bool) *Collection[T] {
	out := &Collection[T]{}
	for _, item := range c.items {
		if pred(item) {
			out.items = append(out.items, item)
		}
	}
	return out
}

// Reject returns a new collection with the items not matching the
// predicate.
func (c *Collection[T]) Reject(pred func(T) bool) *Collection[T] {
	return c.Filter(func(item T) bool { return !pred(item) })
}

// Where returns the items whose key equals value.
func (c *Collection[T]) Where(key func(T) string, value string) *Collection[T] {
	return c.Filter(func(item T) bool { return key(item) == value })
}

// WhereIn returns the items whose key is one of values.
func (c *Collection[T]) WhereIn(key func(T) string, values []string) *Collection[T] {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return c.Filter(func(item T) bool {
		_, ok := set[key(item)]
		return ok
	})
}

// WhereNotIn returns the items whose key is none of values.
func (c *Collection[T]) WhereNotIn(key func(T) string, values []string) *Collection[T] {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return c.Filter(func(item T) bool {
		_, ok := set[key(item)]
		return !ok
	})
}

// SortBy returns a new collection sorted by the less function. The sort
// is stable: ties keep their original relative order.
func (c *Collection[T]) SortBy(less func(a, b T) bool) *Collection[T] {
	out := &Collection[T]{items: c.Items()}
	sort.SliceStable(out.items, func(i, j int) bool {
		return less(out.items[i], out.items[j])
	})
	return out
}

// SortByString sorts on a string key, optionally descending.
func (c *Collection[T]) SortByString(key func(T) string, descending bool) *Collection[T] {
	return c.SortBy(func(a, b T) bool {
		if descending {
			return key(a) > key(b)
		}
		return key(a) < key(b)
	})
}

// SortByNumber sorts on a numeric key, optionally descending.
func (c *Collection[T]) SortByNumber(key func(T) float64, descending bool) *Collection[T] {
	return c.SortBy(func(a, b T) bool {
		if descending {
			return key(a) > key(b)
		}
		return key(a) < key(b)
	})
}

// Grouped is the result of GroupBy: key order follows the first
// occurrence of each key in the source collection.
type Grouped[T any] struct {
	keys   []string
	groups map[string]*Collection[T]
}

// Keys returns the group keys in insertion order.
func (g *Grouped[T]) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Group returns the collection for a key, with ok=false for unknown keys.
func (g *Grouped[T]) Group(key string) (*Collection[T], bool) {
	c, ok := g.groups[key]
	return c, ok
}

// Len returns the number of groups.
func (g *Grouped[T]) Len() int {
	return len(g.keys)
}

// Each calls fn for every group in key insertion order.
func (g *Grouped[T]) Each(fn func(key string, group *Collection[T])) {
	for _, key := range g.keys {
		fn(key, g.groups[key])
	}
}

// GroupBy partitions the collection by key, preserving the insertion
// order of first key occurrence.
func (c *Collection[T]) GroupBy(key func(T) string) *Grouped[T] {
	g := &Grouped[T]{groups: make(map[string]*Collection[T])}
	for _, item := range c.items {
		k := key(item)
		group, ok := g.groups[k]
		if !ok {
			group = &Collection[T]{}
			g.groups[k] = group
			g.keys = append(g.keys, k)
		}
		group.items = append(group.items, item)
	}
	return g
}

// CountBy counts items per key, returning the counts and the keys in
// insertion order of first occurrence.
func (c *Collection[T]) CountBy(key func(T) string) (map[string]int, []string) {
	counts := make(map[string]int)
	var keys []string
	for _, item := range c.items {
		k := key(item)
		if _, ok := counts[k]; !ok {
			keys = append(keys, k)
		}
		counts[k]++
	}
	return counts, keys
}

// SumBy sums a derived numeric value. An empty collection sums to 0.
func (c *Collection[T]) SumBy(value func(T) float64) float64 {
	var sum float64
	for _, item := range c.items {
		sum += value(item)
	}
	return sum
}

// AvgBy averages a derived numeric value. An empty collection averages
// to 0 rather than erroring.
func (c *Collection[T]) AvgBy(value func(T) float64) float64 {
	if len(c.items) == 0 {
		return 0
	}
	return c.SumBy(value) / float64(len(c.items))
}

// MinBy returns the smallest derived value; ok=false on an empty
// collection.
func (c *Collection[T]) MinBy(value func(T) float64) (float64, bool) {
	if len(c.items) == 0 {
		return 0, false
	}
	min := value(c.items[0])
	for _, item := range c.items[1:] {
		if v := value(item); v < min {
			min = v
		}
	}
	return min, true
}

// MaxBy returns the largest derived value; ok=false on an empty
// collection.
func (c *Collection[T]) MaxBy(value func(T) float64) (float64, bool) {
	if len(c.items) == 0 {
		return 0, false
	}
	max := value(c.items[0])
	for _, item := range c.items[1:] {
		if v := value(item); v > max {
			max = v
		}
	}
	return max, true
}

// Unique keeps the first occurrence of every key.
func (c *Collection[T]) Unique(key func(T) string) *Collection[T] {
	seen := make(map[string]struct{}, len(c.items))
	out := &Collection[T]{}
	for _, item := range c.items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out.items = append(out.items, item)
	}
	return out
}

// Merge returns a new collection with the items of both, preserving
// order (receiver first).
func (c *Collection[T]) Merge(other *Collection[T]) *Collection[T] {
	out := &Collection[T]{items: make([]T, 0, len(c.items)+len(other.items))}
	out.items = append(out.items, c.items...)
	out.items = append(out.items, other.items...)
	return out
}

// Intersect returns the receiver's items whose key also appears in other.
func (c *Collection[T]) Intersect(other *Collection[T], key func(T) string) *Collection[T] {
	set := make(map[string]struct{}, len(other.items))
	for _, item := range other.items {
		set[key(item)] = struct{}{}
	}
	return c.Filter(func(item T) bool {
		_, ok := set[key(item)]
		return ok
	})
}

// Diff returns the receiver's items whose key does not appear in other.
func (c *Collection[T]) Diff(other *Collection[T], key func(T) string) *Collection[T] {
	set := make(map[string]struct{}, len(other.items))
	for _, item := range other.items {
		set[key(item)] = struct{}{}
	}
	return c.Filter(func(item T) bool {
		_, ok := set[key(item)]
		return !ok
	})
}

// Take returns the first n items (all of them when n exceeds the length).
func (c *Collection[T]) Take(n int) *Collection[T] {
	if n < 0 {
		n = 0
	}
	if n > len(c.items) {
		n = len(c.items)
	}
	return New(c.items[:n]...)
}

// Skip returns the items after the first n.
func (c *Collection[T]) Skip(n int) *Collection[T] {
	if n < 0 {
		n = 0
	}
	if n > len(c.items) {
		n = len(c.items)
	}
	return New(c.items[n:]...)
}

// Slice returns the items in [from, to), clamped to the valid range.
func (c *Collection[T]) Slice(from, to int) *Collection[T] {
	if from < 0 {
		from = 0
	}
	if to > len(c.items) {
		to = len(c.items)
	}
	if from >= to {
		return &Collection[T]{}
	}
	return New(c.items[from:to]...)
}

// Chunk splits the collection into consecutive chunks of at most size
// items. A non-positive size yields no chunks.
func (c *Collection[T]) Chunk(size int) []*Collection[T] {
	if size <= 0 {
		return nil
	}
	var chunks []*Collection[T]
	for from := 0; from < len(c.items); from += size {
		to := from + size
		if to > len(c.items) {
			to = len(c.items)
		}
		chunks = append(chunks, New(c.items[from:to]...))
	}
	return chunks
}

// Add appends an item in place. Used by repositories while hydrating.
func (c *Collection[T]) Add(item T) {
	c.items = append(c.items, item)
}

// Push is an alias for Add.
func (c *Collection[T]) Push(item T) {
	c.Add(item)
}

// Pop removes and returns the last item; ok=false when empty.
func (c *Collection[T]) Pop() (T, bool) {
	if len(c.items) == 0 {
		var zero T
		return zero, false
	}
	item := c.items[len(c.items)-1]
	c.items = c.items[:len(c.items)-1]
	return item, true
}

// Shift removes and returns the first item; ok=false when empty.
func (c *Collection[T]) Shift() (T, bool) {
	if len(c.items) == 0 {
		var zero T
		return zero, false
	}
	item := c.items[0]
	c.items = c.items[1:]
	return item, true
}

// Map projects every item through fn into a new collection of U.
func Map[T, U any](c *Collection[T], fn func(T) U) *Collection[U] {
	out := &Collection[U]{items: make([]U, 0, len(c.items))}
	for _, item := range c.items {
		out.items = append(out.items, fn(item))
	}
	return out
}
