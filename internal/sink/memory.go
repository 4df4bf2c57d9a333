package sink

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory keeps frames in process memory. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	prefixes map[string]struct{}
	objs     map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{prefixes: map[string]struct{}{}, objs: map[string][]byte{}}
}

func (m *Memory) Prepare(_ context.Context, prefix string) error {
	k, err := cleanKey(prefix)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.prefixes[k] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objs[k] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the data stored under key.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objs[key]
	if !ok {
		return nil, fmt.Errorf("sink: %s not found", key)
	}
	return append([]byte(nil), data...), nil
}

// Keys lists the stored keys under prefix in lexical order.
func (m *Memory) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.objs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Prepared reports whether prefix was prepared.
func (m *Memory) Prepared(prefix string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.prefixes[prefix]
	return ok
}
