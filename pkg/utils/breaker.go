package utils

import "github.com/sony/gobreaker"

// ExecuteWithBreaker runs fn through cb with a typed result. The shop wraps
// its payment provider calls in it; everything else is in-process.
func ExecuteWithBreaker[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})

	if err != nil {
		return *new(T), err
	}

	return res.(T), nil
}
