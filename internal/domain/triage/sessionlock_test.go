package triage

import (
	"sync"
	"testing"
)

func TestSessionLocksExclusive(t *testing.T) {
	locks := newSessionLocks()

	if !locks.acquire("a") {
		t.Fatal("first acquire must succeed")
	}
	if locks.acquire("a") {
		t.Fatal("second acquire on the same id must fail")
	}
	if !locks.acquire("b") {
		t.Fatal("different session must not be blocked")
	}

	locks.release("a")
	if !locks.acquire("a") {
		t.Fatal("acquire after release must succeed")
	}
}

func TestSessionLocksConcurrent(t *testing.T) {
	locks := newSessionLocks()

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- locks.acquire("shared")
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Errorf("%d goroutines acquired the lock, want exactly 1", won)
	}
}
