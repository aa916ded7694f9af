package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := newKeyedMutex()

	const iterations = 200
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < iterations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("session:1")
			counter++
			m.Unlock("session:1")
		}()
	}
	wg.Wait()

	assert.Equal(t, iterations, counter)
}

func TestKeyedMutex_IndependentKeysDoNotBlock(t *testing.T) {
	m := newKeyedMutex()

	m.Lock("session:1")

	done := make(chan struct{})
	go func() {
		m.Lock("session:2")
		m.Unlock("session:2")
		close(done)
	}()

	<-done // would deadlock if keys shared a lock
	m.Unlock("session:1")
}

func TestKeyedMutex_ReleasesEntryWhenIdle(t *testing.T) {
	m := newKeyedMutex()

	m.Lock("session:1")
	m.Unlock("session:1")

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks)
}
