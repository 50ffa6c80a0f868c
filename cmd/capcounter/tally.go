package main

import (
	"sync"

	"github.com/silash35/labrob/pinout"
)

// Tally counts the caps sorted into each category.
type Tally struct {
	mu     sync.RWMutex
	counts map[pinout.Category]uint64
}

func NewTally() *Tally {
	return &Tally{counts: make(map[pinout.Category]uint64)}
}

func (t *Tally) Add(category pinout.Category) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[category]++
	return t.counts[category]
}

func (t *Tally) Count(category pinout.Category) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[category]
}

func (t *Tally) Total() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total uint64
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Snapshot lists every category, including empty ones.
func (t *Tally) Snapshot() map[string]uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snapshot := make(map[string]uint64, len(pinout.Categories()))
	for _, c := range pinout.Categories() {
		snapshot[c.String()] = t.counts[c]
	}
	return snapshot
}

func (t *Tally) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts = make(map[pinout.Category]uint64)
}
