package syncutil

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	const n = 50
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("session-a")
			defer km.Unlock("session-a")
			counter++
		}()
	}
	wg.Wait()

	if counter != n {
		t.Fatalf("counter = %d, want %d", counter, n)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()

	km.Lock("a")
	done := make(chan struct{})
	go func() {
		km.Lock("b") // must not block on "a"
		km.Unlock("b")
		close(done)
	}()
	<-done
	km.Unlock("a")
}

func TestKeyedMutexUnlockUnheldPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unlock of unheld key")
		}
	}()
	NewKeyedMutex().Unlock("nope")
}
