// Package syncutil provides small concurrency helpers shared by the services.
package syncutil

import "sync"

// KeyedMutex serializes work per key. Turns for the same session must apply
// one at a time so each reply reflects all earlier messages, while unrelated
// sessions proceed in parallel.
//
// Lock entries are created on demand and kept for the lifetime of the
// process; keys are bounded by the active-session population, which the
// cleanup sweep keeps small.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it if needed.
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
}

// Unlock releases the mutex for key. Unlocking a key that was never locked
// panics, same as sync.Mutex.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	k.mu.Unlock()
	if !ok {
		panic("syncutil: unlock of unheld key " + key)
	}
	m.Unlock()
}
