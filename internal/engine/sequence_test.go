package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence_StartsAtOne(t *testing.T) {
	var s sequence
	assert.Zero(t, s.last())
	assert.Equal(t, int64(1), s.next())
	assert.Equal(t, int64(2), s.next())
	assert.Equal(t, int64(2), s.last())
}

func TestSequence_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	var s sequence
	const workers, each = 20, 50

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*each)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				n := s.next()
				mu.Lock()
				seen[n] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*each)
	assert.Equal(t, int64(workers*each), s.last())
}

func TestEventLedger_CountsPerEvent(t *testing.T) {
	l := newEventLedger()
	l.emit("a")
	l.emit("a")
	l.emit("b")

	assert.Equal(t, int64(2), l.count("a"))
	assert.Equal(t, int64(1), l.count("b"))
	assert.Zero(t, l.count("c"))
}
