// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zwave

import (
	"sync"
	"testing"
)

func TestSequence_ZeroValueStartsAtOne(t *testing.T) {
	var s Sequence
	if got := s.Next(); got != 1 {
		t.Errorf("Next() = %d, want 1", got)
	}
	if got := s.Next(); got != 2 {
		t.Errorf("Next() = %d, want 2", got)
	}
}

func TestSequence_Monotonic(t *testing.T) {
	s := NewSequence(0)
	prev := s.Next()
	for i := 0; i < 1000; i++ {
		got := s.Next()
		if got != prev+1 {
			t.Fatalf("call %d: Next() = %d, want %d", i, got, prev+1)
		}
		prev = got
	}
}

func TestSequence_Wraps(t *testing.T) {
	s := NewSequence(254)
	want := []SequenceNumber{255, 0, 1}
	for i, w := range want {
		if got := s.Next(); got != w {
			t.Errorf("call %d: Next() = %d, want %d", i, got, w)
		}
	}
}

func TestSequence_RepeatsAfterRange(t *testing.T) {
	s := NewSequence(42)
	first := s.Next()
	for i := 1; i < SequenceRange; i++ {
		if got := s.Next(); got == first {
			t.Fatalf("value %d repeated after %d calls", first, i)
		}
	}
	if got := s.Next(); got != first {
		t.Errorf("after %d calls Next() = %d, want %d", SequenceRange, got, first)
	}
}

func TestSequence_Concurrent(t *testing.T) {
	s := NewSequence(0)
	const workers = 8
	const perWorker = SequenceRange / workers

	var mu sync.Mutex
	seen := make(map[SequenceNumber]int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]SequenceNumber, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, s.Next())
			}
			mu.Lock()
			for _, v := range local {
				seen[v]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// One full range split across workers hands out every value exactly once
	if len(seen) != SequenceRange {
		t.Fatalf("distinct values = %d, want %d", len(seen), SequenceRange)
	}
	for v, n := range seen {
		if n != 1 {
			t.Errorf("value %d allocated %d times", v, n)
		}
	}
}

func TestNextSequence_UsesDefault(t *testing.T) {
	a := NextSequence()
	b := DefaultSequence().Next()
	if b != a+1 {
		t.Errorf("DefaultSequence().Next() = %d, want %d", b, a+1)
	}
}
