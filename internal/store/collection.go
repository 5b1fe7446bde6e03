package store

// collection is an insertion-ordered list of records addressed by a string key.
// Records leave the collection only as clones so callers can never alias
// slices or maps held by the store.
type collection[T any] struct {
	items []T
	key   func(T) string
	clone func(T) T
}

func newCollection[T any](key func(T) string, clone func(T) T) *collection[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &collection[T]{key: key, clone: clone}
}

func (c *collection[T]) index(id string) int {
	for i, item := range c.items {
		if c.key(item) == id {
			return i
		}
	}
	return -1
}

func (c *collection[T]) get(id string) (T, bool) {
	i := c.index(id)
	if i < 0 {
		var zero T
		return zero, false
	}
	return c.clone(c.items[i]), true
}

func (c *collection[T]) insert(v T) {
	c.items = append(c.items, c.clone(v))
}

func (c *collection[T]) set(i int, v T) {
	c.items[i] = c.clone(v)
}

// remove drops the first record with the given key.
func (c *collection[T]) remove(id string) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

func (c *collection[T]) find(pred func(T) bool) []T {
	res := make([]T, 0)
	for _, item := range c.items {
		if pred == nil || pred(item) {
			res = append(res, c.clone(item))
		}
	}
	return res
}

func (c *collection[T]) all() []T {
	return c.find(nil)
}

func (c *collection[T]) len() int {
	return len(c.items)
}
