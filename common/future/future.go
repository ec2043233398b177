// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package future provides a minimal promise/future pair on top of Go channels.
// It is used to hand the outcome of asynchronously started indexing passes
// back to the caller that triggered them.
//
// The producer side typically looks as follows:
//
//	promise, future := future.Create[T]()
//	go func() {
//	   promise.Fulfill(someOperation())
//	}()
//	return future
package future

import "context"

// Promise is the producer handle of a Future.
type Promise[T any] struct {
	C chan<- T
}

// Future is a placeholder for a value produced later on. Futures can only
// be consumed once.
type Future[T any] struct {
	C <-chan T
}

// Create initializes a linked Promise and Future pair.
func Create[T any]() (Promise[T], Future[T]) {
	ch := make(chan T, 1)
	return Promise[T]{C: ch}, Future[T]{C: ch}
}

// Immediate creates a Future that is already fulfilled with the given value.
func Immediate[T any](value T) Future[T] {
	ch := make(chan T, 1)
	ch <- value
	close(ch)
	return Future[T]{C: ch}
}

// Fulfill hands the value to the linked Future. It must be called at most once.
func (p Promise[T]) Fulfill(value T) {
	p.C <- value
	close(p.C)
}

// Await blocks until the Future is fulfilled and returns its value.
func (f Future[T]) Await() T {
	return <-f.C
}

// AwaitContext is like Await but gives up when the context is done. The
// producer is not affected by an abandoned wait.
func (f Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case value := <-f.C:
		return value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then creates a new Future by applying the given transformation to the
// value of the original Future once it is fulfilled.
func Then[A, B any](f Future[A], transform func(A) B) Future[B] {
	promise, future := Create[B]()
	go func() {
		promise.Fulfill(transform(f.Await()))
	}()
	return future
}
