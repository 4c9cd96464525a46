package query

import (
	"context"
	"fmt"
)

// LoaderOf adapts a typed fetch function to a Loader.
func LoaderOf[T any](fn func(ctx context.Context) (T, error)) Loader {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}

// DataAs returns the data of e as T.
func DataAs[T any](e Entry) (T, bool) {
	var zero T
	if !e.HasData {
		return zero, false
	}
	v, ok := e.Data.(T)
	return v, ok
}

// FetchAs is Fetch with a typed loader and result.
func FetchAs[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Fetch(ctx, key, LoaderOf(fn))
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query %s: cached %T is not %T", key, v, zero)
	}
	return typed, nil
}

// Update rewrites the data of key with fn when the key holds a T. Absent
// entries stay absent. It reports whether a write happened.
func Update[T any](c *Cache, key Key, fn func(T) T) bool {
	return c.SetData(key, func(prev any, ok bool) (any, bool) {
		if !ok {
			return nil, false
		}
		typed, isT := prev.(T)
		if !isT {
			return nil, false
		}
		return fn(typed), true
	})
}

// Set writes v under key unconditionally.
func Set[T any](c *Cache, key Key, v T) {
	c.SetData(key, func(any, bool) (any, bool) {
		return v, true
	})
}
