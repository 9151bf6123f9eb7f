package blobstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. Objects are served under BaseURL + ResultsPath.
type Memory struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]*Object
	puts    int
}

// NewMemory returns an empty store.
func NewMemory(baseURL string) *Memory {
	return &Memory{BaseURL: baseURL, objects: make(map[string]*Object)}
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) error {
	obj := &Object{
		Key:         key,
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
		Created:     time.Now().UTC(),
	}
	m.mu.Lock()
	m.objects[key] = obj
	m.puts++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (*Object, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := *obj
	cp.Data = append([]byte(nil), obj.Data...)
	return &cp, nil
}

func (m *Memory) URL(key string) string { return resultsURL(m.BaseURL, key) }

// Puts is the number of writes so far, overwrites included.
func (m *Memory) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
