// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package result

// Result bundles the value and the error of a completed computation, such
// that both can travel through a single channel, e.g. the outcome of an
// asynchronously executed indexing pass.
type Result[T any] struct {
	value T
	err   error
}

// Ok creates a successful Result holding the given value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err creates a failed Result holding the given error.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Of creates a Result from a conventional (value, error) pair.
func Of[T any](value T, err error) Result[T] {
	return Result[T]{value: value, err: err}
}

// Get returns the contained value and error.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// Error returns the contained error, nil on success.
func (r Result[T]) Error() error {
	return r.err
}
