package handler

import "sync"

// lazy holds a value built on first use. A failed build is not cached and the next get retries.
type lazy[T any] struct {
	mutex sync.Mutex
	value T
	done  bool
}

func (x *lazy[T]) get(build func() (T, error)) (T, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if x.done {
		return x.value, nil
	}

	v, err := build()
	if err != nil {
		var zero T
		return zero, err
	}
	x.value, x.done = v, true
	return v, nil
}

// reset forgets the value and returns it if it had been built
func (x *lazy[T]) reset() (T, bool) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	v, ok := x.value, x.done
	var zero T
	x.value, x.done = zero, false
	return v, ok
}
