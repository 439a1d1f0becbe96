// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reactive

import (
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/katrix/lib/testutil"
)

func TestHolderGetSet(t *testing.T) {
	holder := NewHolder("initial")
	if got := holder.Get(); got != "initial" {
		t.Fatalf("Get() = %q, want %q", got, "initial")
	}
	holder.Set("next")
	if got := holder.Get(); got != "next" {
		t.Fatalf("Get() after Set = %q, want %q", got, "next")
	}
	if holder.Version() != 1 {
		t.Fatalf("Version() = %d, want 1", holder.Version())
	}
}

func TestSubscribeReceivesCurrentValue(t *testing.T) {
	holder := NewHolder(7)
	subscription := holder.Subscribe()
	defer subscription.Close()

	got := testutil.RequireReceive(t, subscription.C(), time.Second, "initial value")
	if got != 7 {
		t.Fatalf("first value = %d, want 7", got)
	}
}

func TestSubscriptionLatestWins(t *testing.T) {
	holder := NewHolder(0)
	subscription := holder.Subscribe()
	defer subscription.Close()

	// Nobody reads while the writer moves ahead; only the last value
	// may remain pending.
	for value := 1; value <= 100; value++ {
		holder.Set(value)
	}

	got := testutil.RequireReceive(t, subscription.C(), time.Second, "latest value")
	if got != 100 {
		t.Fatalf("pending value = %d, want 100", got)
	}
	testutil.RequireNoPending(t, subscription.C(), "only one value retained")
}

func TestSubscriptionClose(t *testing.T) {
	holder := NewHolder(0)
	subscription := holder.Subscribe()
	<-subscription.C()

	subscription.Close()
	subscription.Close()
	holder.Set(1)

	if _, ok := <-subscription.C(); ok {
		t.Fatal("received from closed subscription")
	}
}

func TestUpdateIsAtomic(t *testing.T) {
	holder := NewHolder(0)
	var wait sync.WaitGroup
	for range 50 {
		wait.Add(1)
		go func() {
			defer wait.Done()
			holder.Update(func(value int) int { return value + 1 })
		}()
	}
	wait.Wait()
	if got := holder.Get(); got != 50 {
		t.Fatalf("Get() = %d, want 50", got)
	}
}
