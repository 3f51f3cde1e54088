package llm

import "sync"

// memRotation is an in-memory RotationStore for tests.
type memRotation struct {
	mu        sync.Mutex
	idx       map[string]int
	lastProv  string
	lastModel map[string]string
}

func newMemRotation() *memRotation {
	return &memRotation{
		idx:       map[string]int{},
		lastModel: map[string]string{},
	}
}

func (m *memRotation) KeyIndex(provider string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idx[provider]
}

func (m *memRotation) SetKeyIndex(provider string, idx int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idx[provider] = idx
	return nil
}

func (m *memRotation) MarkProviderUsed(provider string, idx int, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idx[provider] = idx
	m.lastProv = provider
	m.lastModel[provider] = model
	return nil
}

func (m *memRotation) LastProvider() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastProv
}
