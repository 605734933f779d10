// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"sync"
	"testing"
)

func TestPhaseDetector(t *testing.T) {
	pd := NewPhaseDetector()

	if m := pd.Measurement(); m.Valid {
		t.Fatalf("measurement valid before any edge: %+v", m)
	}

	// a single edge starts a measurement but does not complete it.
	pd.EdgeA(100)
	if m := pd.Measurement(); m.Valid {
		t.Fatalf("measurement valid after one edge: %+v", m)
	}

	pd.EdgeB(103)
	m := pd.Measurement()
	if !m.Valid {
		t.Fatalf("measurement not valid after both edges")
	}
	if got, want := m.Offset, int64(3); got != want {
		t.Fatalf("invalid offset: got=%d, want=%d", got, want)
	}

	// B leading A yields a negative offset.
	pd.EdgeB(200)
	pd.EdgeA(205)
	m = pd.Measurement()
	if got, want := m.Offset, int64(-5); got != want {
		t.Fatalf("invalid offset: got=%d, want=%d", got, want)
	}

	pd.Reset()
	if m := pd.Measurement(); m.Valid {
		t.Fatalf("measurement valid after reset: %+v", m)
	}
	pd.EdgeB(300)
	if m := pd.Measurement(); m.Valid {
		t.Fatalf("reset did not drop the A latch: %+v", m)
	}
}

func TestPhaseDetectorConcurrent(t *testing.T) {
	// streams A and B advance on their own contexts with a constant
	// lag; a third context polls. every valid observation must be a
	// coherent snapshot, never a torn value.
	const (
		n   = 1000
		lag = 7
	)
	pd := NewPhaseDetector()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := uint64(0); i < n; i++ {
			pd.EdgeA(i * 10)
		}
	}()
	go func() {
		defer wg.Done()
		for i := uint64(0); i < n; i++ {
			pd.EdgeB(i*10 + lag)
		}
	}()

	stop := make(chan int)
	go func() {
		for {
			select {
			case <-stop:
				stop <- 1
				return
			default:
			}
			m := pd.Measurement()
			if !m.Valid {
				continue
			}
			// offsets combine two tick trains with a fixed lag:
			// they are always ≡ lag (mod 10).
			mod := m.Offset % 10
			if mod < 0 {
				mod += 10
			}
			if mod != lag {
				t.Errorf("torn measurement: offset=%d", m.Offset)
				return
			}
		}
	}()

	wg.Wait()
	stop <- 1
	<-stop
}
