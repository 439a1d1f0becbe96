// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reactive

import "context"

// Derived is a Holder maintained by Derive.
type Derived[T any] struct {
	*Holder[T]
	done chan struct{}
}

// Done is closed once the derivation has stopped and detached from
// its sources. No Set happens on the holder after Done is closed.
func (d *Derived[T]) Done() <-chan struct{} {
	return d.done
}

// Derive returns a holder whose value is compute(), re-evaluated each
// time any source changes, until ctx is cancelled.
//
// Sources are attached before the first evaluation, so a change that
// races with construction is never lost. Bursts of changes may
// coalesce into a single re-evaluation.
func Derive[T any](ctx context.Context, compute func() T, sources ...Source) *Derived[T] {
	signal := make(chan struct{}, 1)
	detaches := make([]func(), 0, len(sources))
	for _, source := range sources {
		detaches = append(detaches, source.attach(signal))
	}

	derived := &Derived[T]{
		Holder: NewHolder(compute()),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(derived.done)
		defer func() {
			for _, detach := range detaches {
				detach()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
				// Prefer cancellation when both are ready.
				if ctx.Err() != nil {
					return
				}
				derived.Set(compute())
			}
		}
	}()
	return derived
}
