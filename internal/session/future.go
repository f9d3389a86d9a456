// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package session

import (
	"context"
	"sync"
)

// Future is the completion of one asynchronous send. It completes exactly
// once, with a nil error on success.
type Future struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func completedFuture(err error) *Future {
	f := newFuture()
	f.complete(err)
	return f
}

// complete resolves the future; later calls are ignored.
func (f *Future) complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel that is closed once the send has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the outcome of the send. It blocks until completion.
func (f *Future) Err() error {
	<-f.done
	return f.err
}

// Wait blocks until the send completes or ctx is done. A ctx error is
// returned without affecting the send itself.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
